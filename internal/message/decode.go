package message

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // register non UTF-8 charsets
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// Header holds the listing fields of a message.
type Header struct {
	Date    string
	From    string
	To      string
	Cc      string
	Subject string
}

// Attachment describes an attached file without its content.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
}

// Decoded is a fully parsed message.
type Decoded struct {
	Header
	Bcc         string
	Time        time.Time
	Text        string
	HTML        string
	Attachments []Attachment
}

// HTMLConverter derives a plain text body from HTML.
type HTMLConverter interface {
	HTML2Text(html string) (string, error)
}

// Decoder parses raw messages. Conv is optional; when set it fills Text for
// messages that only carry an HTML body.
type Decoder struct {
	Conv HTMLConverter
}

// DecodeHeader parses a header-only fetch.
func DecodeHeader(raw []byte) (*Header, error) {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("textproto.ReadHeader failed: %w", err)
	}
	mh := mail.Header{Header: gomessage.Header{Header: h}}

	return &Header{
		Date:    mh.Get("Date"),
		From:    headerText(mh, "From"),
		To:      headerText(mh, "To"),
		Cc:      headerText(mh, "Cc"),
		Subject: headerText(mh, "Subject"),
	}, nil
}

// Decode parses a complete message into headers, bodies and attachment metadata.
func (d Decoder) Decode(raw []byte) (*Decoded, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, fmt.Errorf("mail.CreateReader failed: %w", err)
	}
	defer func() { _ = mr.Close() }()

	decoded := &Decoded{
		Header: Header{
			Date:    mr.Header.Get("Date"),
			From:    headerText(mr.Header, "From"),
			To:      headerText(mr.Header, "To"),
			Cc:      headerText(mr.Header, "Cc"),
			Subject: headerText(mr.Header, "Subject"),
		},
		Bcc: headerText(mr.Header, "Bcc"),
	}
	if t, err := mr.Header.Date(); err == nil {
		decoded.Time = t
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !gomessage.IsUnknownCharset(err) {
			return nil, fmt.Errorf("mr.NextPart failed: %w", err)
		}
		if part == nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("reading %s part failed: %w", contentType, err)
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain") && decoded.Text == "":
				decoded.Text = string(body)
			case strings.HasPrefix(contentType, "text/html") && decoded.HTML == "":
				decoded.HTML = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			size, err := io.Copy(io.Discard, part.Body)
			if err != nil {
				return nil, fmt.Errorf("reading attachment %s failed: %w", filename, err)
			}

			decoded.Attachments = append(decoded.Attachments, Attachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        size,
			})
		}
	}

	if decoded.Text == "" && decoded.HTML != "" && d.Conv != nil {
		text, err := d.Conv.HTML2Text(decoded.HTML)
		if err != nil {
			return nil, fmt.Errorf("conv.HTML2Text failed: %w", err)
		}
		decoded.Text = text
	}

	return decoded, nil
}

func headerText(h mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		return h.Get(key)
	}
	return v
}
