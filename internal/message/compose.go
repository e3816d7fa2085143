// Package message composes and decodes RFC 5322 mail documents.
package message

import (
	"bytes"
	"strconv"
	"time"
)

const crlf = "\r\n"

// Fields are the structured inputs of a composed message.
// Values are inserted verbatim: addresses are not validated and non-ASCII
// header values are not encoded.
type Fields struct {
	From      string
	To        string
	Cc        string
	Bcc       string
	Subject   string
	MessageID string
	Text      string
	HTML      string
}

// Composer builds mail documents. Now defaults to time.Now.
type Composer struct {
	Now func() time.Time
}

// Compose returns a CRLF-terminated mail document.
//
// Without HTML the body is a single text/plain part. With HTML it is a
// multipart/alternative body holding the plain part followed by the HTML part.
func (c Composer) Compose(f Fields) []byte {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}

	var buf bytes.Buffer

	writeHeader(&buf, "From", f.From)
	writeHeader(&buf, "To", f.To)
	if f.Cc != "" {
		writeHeader(&buf, "Cc", f.Cc)
	}
	if f.Bcc != "" {
		writeHeader(&buf, "Bcc", f.Bcc)
	}
	writeHeader(&buf, "Subject", f.Subject)
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	if f.MessageID != "" {
		writeHeader(&buf, "Message-ID", f.MessageID)
	}
	writeHeader(&buf, "MIME-Version", "1.0")

	if f.HTML == "" {
		writeHeader(&buf, "Content-Type", "text/plain; charset=utf-8")
		buf.WriteString(crlf)
		buf.WriteString(f.Text)
		return buf.Bytes()
	}

	boundary := Boundary(now)
	writeHeader(&buf, "Content-Type", `multipart/alternative; boundary="`+boundary+`"`)
	buf.WriteString(crlf)

	writePart(&buf, boundary, "text/plain; charset=utf-8", f.Text)
	writePart(&buf, boundary, "text/html; charset=utf-8", f.HTML)
	buf.WriteString("--" + boundary + "--" + crlf)

	return buf.Bytes()
}

// Boundary returns the multipart boundary token used for a message composed at t.
func Boundary(t time.Time) string {
	return "----=_Part_" + strconv.FormatInt(t.UnixMilli(), 10)
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString(crlf)
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) {
	buf.WriteString("--" + boundary + crlf)
	writeHeader(buf, "Content-Type", contentType)
	buf.WriteString(crlf)
	buf.WriteString(body)
	buf.WriteString(crlf)
}
