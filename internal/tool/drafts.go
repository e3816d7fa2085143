package tool

import (
	"context"
	"fmt"

	"github.com/hal9000y/mail-mcp/internal/mailbox"
	"github.com/hal9000y/mail-mcp/internal/message"
)

type listDraftsArgs struct {
	Limit int `mapstructure:"limit"`
}

type composeArgs struct {
	UID     uint32 `mapstructure:"uid"`
	To      string `mapstructure:"to"`
	Cc      string `mapstructure:"cc"`
	Bcc     string `mapstructure:"bcc"`
	Subject string `mapstructure:"subject"`
	Body    string `mapstructure:"body"`
	HTML    string `mapstructure:"html"`
}

func (d *Dispatcher) draftsFolder(sess mailbox.Session) (string, error) {
	tree, err := sess.ListFolders()
	if err != nil {
		return "", err
	}
	return d.resolver.Resolve(tree), nil
}

func (d *Dispatcher) listDrafts(_ context.Context, sess mailbox.Session, args map[string]any) (any, error) {
	var in listDraftsArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := validateLimit(in.Limit); err != nil {
		return nil, err
	}

	folder, err := d.draftsFolder(sess)
	if err != nil {
		return nil, err
	}
	if err := sess.OpenFolder(folder); err != nil {
		return nil, err
	}

	drafts, err := summaries(sess, mailbox.Criteria{}, in.Limit)
	if err != nil {
		return nil, err
	}

	return DraftList{Folder: folder, Drafts: drafts}, nil
}

func (d *Dispatcher) getDraft(_ context.Context, sess mailbox.Session, args map[string]any) (any, error) {
	var in messageRef
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := validateUID(in.UID); err != nil {
		return nil, err
	}

	folder, err := d.draftsFolder(sess)
	if err != nil {
		return nil, err
	}
	if err := sess.OpenFolder(folder); err != nil {
		return nil, err
	}

	decoded, found, err := d.fetchDecoded(sess, in.UID)
	if err != nil {
		return nil, err
	}
	if !found {
		return draftNotFound, nil
	}

	return DraftDetail{
		UID:     in.UID,
		From:    decoded.From,
		To:      decoded.To,
		Cc:      decoded.Cc,
		Subject: decoded.Subject,
		Date:    decoded.Date,
		Text:    decoded.Text,
		HTML:    decoded.HTML,
	}, nil
}

func (d *Dispatcher) createDraft(_ context.Context, sess mailbox.Session, args map[string]any) (any, error) {
	var in composeArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	folder, err := d.draftsFolder(sess)
	if err != nil {
		return nil, err
	}

	if err := sess.Append(folder, d.composeDraft(in), []string{mailbox.FlagDraft}); err != nil {
		return nil, err
	}

	return plainText("Draft created in " + folder), nil
}

// updateDraft deletes the old draft before appending the new one. If the
// append fails the original draft is already gone.
func (d *Dispatcher) updateDraft(_ context.Context, sess mailbox.Session, args map[string]any) (any, error) {
	var in composeArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := validateUID(in.UID); err != nil {
		return nil, err
	}

	folder, err := d.draftsFolder(sess)
	if err != nil {
		return nil, err
	}

	if err := sess.OpenFolder(folder); err != nil {
		return nil, err
	}
	if err := sess.AddFlags(in.UID, mailbox.FlagDeleted); err != nil {
		return nil, err
	}
	if err := sess.CloseFolder(true); err != nil {
		return nil, err
	}
	if err := sess.OpenFolder(folder); err != nil {
		return nil, err
	}

	if err := sess.Append(folder, d.composeDraft(in), []string{mailbox.FlagDraft}); err != nil {
		return nil, fmt.Errorf("draft %d was removed but saving its replacement failed: %w", in.UID, err)
	}

	return plainText(fmt.Sprintf("Draft %d updated in %s", in.UID, folder)), nil
}

func (d *Dispatcher) composeDraft(in composeArgs) []byte {
	return d.composer.Compose(message.Fields{
		From:    d.cfg.From,
		To:      in.To,
		Cc:      in.Cc,
		Bcc:     in.Bcc,
		Subject: in.Subject,
		Text:    in.Body,
		HTML:    in.HTML,
	})
}
