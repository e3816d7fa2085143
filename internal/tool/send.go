package tool

import (
	"context"

	"github.com/hal9000y/mail-mcp/internal/mailbox"
	"github.com/hal9000y/mail-mcp/internal/smtpmail"
)

func (d *Dispatcher) sendEmail(ctx context.Context, _ mailbox.Session, args map[string]any) (any, error) {
	if d.transfer == nil || d.cfg.SMTP.Host == "" {
		return nil, ErrDeliveryNotConfigured
	}

	var in composeArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	receipt, err := d.transfer.Deliver(ctx, smtpmail.Message{
		To:      in.To,
		Cc:      in.Cc,
		Bcc:     in.Bcc,
		Subject: in.Subject,
		Text:    in.Body,
		HTML:    in.HTML,
	})
	if err != nil {
		return nil, err
	}

	return SendResult{
		Success:   true,
		MessageID: receipt.MessageID,
		Response:  receipt.Response,
	}, nil
}
