package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hal9000y/mail-mcp/internal/mailbox"
	"github.com/hal9000y/mail-mcp/internal/message"
)

const (
	emailNotFound = plainText("Email not found")
	draftNotFound = plainText("Draft not found")
)

type listEmailsArgs struct {
	Folder     string `mapstructure:"folder"`
	Limit      int    `mapstructure:"limit"`
	UnseenOnly bool   `mapstructure:"unseen_only"`
	SinceDate  string `mapstructure:"since_date"`
}

type searchEmailsArgs struct {
	Folder  string `mapstructure:"folder"`
	Limit   int    `mapstructure:"limit"`
	Subject string `mapstructure:"subject"`
	From    string `mapstructure:"from"`
	Body    string `mapstructure:"body"`
}

type messageRef struct {
	Folder string `mapstructure:"folder"`
	UID    uint32 `mapstructure:"uid"`
}

func (d *Dispatcher) listFolders(_ context.Context, sess mailbox.Session, _ map[string]any) (any, error) {
	tree, err := sess.ListFolders()
	if err != nil {
		return nil, err
	}
	return tree.Flatten(), nil
}

func (d *Dispatcher) listEmails(_ context.Context, sess mailbox.Session, args map[string]any) (any, error) {
	var in listEmailsArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := validateLimit(in.Limit); err != nil {
		return nil, err
	}

	var criteria mailbox.Criteria
	if in.UnseenOnly {
		criteria = mailbox.Criteria{Unseen: true}
	}
	if in.SinceDate != "" {
		since, err := parseSince(in.SinceDate)
		if err != nil {
			return nil, err
		}
		criteria = mailbox.Criteria{Since: since}
	}

	if err := sess.OpenFolder(in.Folder); err != nil {
		return nil, err
	}

	return summaries(sess, criteria, in.Limit)
}

func (d *Dispatcher) getEmail(_ context.Context, sess mailbox.Session, args map[string]any) (any, error) {
	var in messageRef
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := validateUID(in.UID); err != nil {
		return nil, err
	}

	if err := sess.OpenFolder(in.Folder); err != nil {
		return nil, err
	}

	decoded, found, err := d.fetchDecoded(sess, in.UID)
	if err != nil {
		return nil, err
	}
	if !found {
		return emailNotFound, nil
	}

	attachments := make([]Attachment, 0, len(decoded.Attachments))
	for _, a := range decoded.Attachments {
		attachments = append(attachments, Attachment{Filename: a.Filename, ContentType: a.ContentType, Size: a.Size})
	}

	return MessageDetail{
		UID:         in.UID,
		From:        decoded.From,
		To:          decoded.To,
		Cc:          decoded.Cc,
		Subject:     decoded.Subject,
		Date:        decoded.Date,
		Text:        decoded.Text,
		HTML:        decoded.HTML,
		Attachments: attachments,
	}, nil
}

func (d *Dispatcher) searchEmails(_ context.Context, sess mailbox.Session, args map[string]any) (any, error) {
	var in searchEmailsArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := validateLimit(in.Limit); err != nil {
		return nil, err
	}

	if err := sess.OpenFolder(in.Folder); err != nil {
		return nil, err
	}

	msgs, err := sess.Search(
		mailbox.Criteria{Subject: in.Subject, From: in.From, Body: in.Body},
		mailbox.FetchSpec{Header: true, Last: in.Limit},
	)
	if err != nil {
		return nil, err
	}

	msgs = newestFirst(msgs, in.Limit)
	results := make([]SearchResult, 0, len(msgs))
	for _, m := range msgs {
		h, err := message.DecodeHeader(m.Header)
		if err != nil {
			return nil, fmt.Errorf("decoding header of %d failed: %w", m.UID, err)
		}
		results = append(results, SearchResult{UID: m.UID, Date: h.Date, From: h.From, To: h.To, Subject: h.Subject})
	}

	return results, nil
}

func (d *Dispatcher) deleteEmail(_ context.Context, sess mailbox.Session, args map[string]any) (any, error) {
	var in messageRef
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := validateUID(in.UID); err != nil {
		return nil, err
	}

	if err := sess.OpenFolder(in.Folder); err != nil {
		return nil, err
	}
	if err := sess.AddFlags(in.UID, mailbox.FlagDeleted); err != nil {
		return nil, err
	}
	if err := sess.CloseFolder(true); err != nil {
		return nil, err
	}

	return plainText(fmt.Sprintf("Email %d deleted from %s", in.UID, in.Folder)), nil
}

// summaries searches the opened folder and returns the trailing limit
// matches newest first.
func summaries(sess mailbox.Session, criteria mailbox.Criteria, limit int) ([]MessageSummary, error) {
	msgs, err := sess.Search(criteria, mailbox.FetchSpec{Header: true, Flags: true, Last: limit})
	if err != nil {
		return nil, err
	}

	msgs = newestFirst(msgs, limit)
	out := make([]MessageSummary, 0, len(msgs))
	for _, m := range msgs {
		h, err := message.DecodeHeader(m.Header)
		if err != nil {
			return nil, fmt.Errorf("decoding header of %d failed: %w", m.UID, err)
		}
		flags := m.Flags
		if flags == nil {
			flags = []string{}
		}
		out = append(out, MessageSummary{
			UID:     m.UID,
			Date:    h.Date,
			From:    h.From,
			To:      h.To,
			Subject: h.Subject,
			Flags:   flags,
		})
	}

	return out, nil
}

// fetchDecoded fetches and decodes the message with the given UID from the
// opened folder.
func (d *Dispatcher) fetchDecoded(sess mailbox.Session, uid uint32) (*message.Decoded, bool, error) {
	msgs, err := sess.Search(mailbox.Criteria{UID: uid}, mailbox.FetchSpec{Body: true})
	if err != nil {
		return nil, false, err
	}

	for _, m := range msgs {
		if m.UID != uid {
			continue
		}
		decoded, err := d.decoder.Decode(m.Body)
		if err != nil {
			return nil, false, fmt.Errorf("decoding message %d failed: %w", uid, err)
		}
		return decoded, true, nil
	}

	return nil, false, nil
}

// newestFirst keeps the trailing limit messages of an ascending sequence and
// reverses them.
func newestFirst(msgs []mailbox.Message, limit int) []mailbox.Message {
	if limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]mailbox.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}

func parseSince(value string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid since_date %q: expected YYYY-MM-DD or RFC 3339", value)
}

func validateLimit(limit int) error {
	if limit <= 0 {
		return errors.New("limit must be a positive number")
	}
	if int64(limit) > math.MaxUint32 {
		return fmt.Errorf("limit must not exceed %d", int64(math.MaxUint32))
	}
	return nil
}

func validateUID(uid uint32) error {
	if uid == 0 {
		return errors.New("uid must be a positive number")
	}
	return nil
}
