// Package smtpmail delivers composed messages to an SMTP relay.
package smtpmail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/hal9000y/mail-mcp/internal/config"
	"github.com/hal9000y/mail-mcp/internal/message"
)

// ErrDelivery indicates the relay rejected the message or could not be reached.
var ErrDelivery = errors.New("delivery failed")

const dialTimeout = 30 * time.Second

// Message is an outgoing mail. Address fields are comma separated lists.
type Message struct {
	To      string
	Cc      string
	Bcc     string
	Subject string
	Text    string
	HTML    string
}

// Receipt describes an accepted delivery.
type Receipt struct {
	MessageID string
	Response  string
}

// Client opens one SMTP connection per delivery.
type Client struct {
	cfg      config.SMTP
	from     string
	composer message.Composer
	newID    func() string
	logger   *slog.Logger
}

// NewClient creates a Client sending as from through the relay in cfg.
func NewClient(cfg config.SMTP, from string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		from:   from,
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Deliver composes msg and submits it. Bcc recipients are added to the
// envelope but not to the message headers.
func (c *Client) Deliver(ctx context.Context, msg Message) (*Receipt, error) {
	sender, err := mail.ParseAddress(c.from)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid sender %q: %v", ErrDelivery, c.from, err)
	}

	rcpts, err := recipients(msg.To, msg.Cc, msg.Bcc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if len(rcpts) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrDelivery)
	}

	messageID := fmt.Sprintf("<%s@%s>", c.newID(), domainOf(sender.Address))
	raw := c.composer.Compose(message.Fields{
		From:      c.from,
		To:        msg.To,
		Cc:        msg.Cc,
		Subject:   msg.Subject,
		MessageID: messageID,
		Text:      msg.Text,
		HTML:      msg.HTML,
	})

	client, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			c.logger.Debug("SMTP close failed", slog.String("error", err.Error()))
		}
	}()

	if err := c.submit(client, sender.Address, rcpts, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	if err := client.Quit(); err != nil {
		c.logger.Debug("SMTP quit failed", slog.String("error", err.Error()))
	}

	return &Receipt{
		MessageID: messageID,
		Response:  acceptedResponse(len(rcpts)),
	}, nil
}

func (c *Client) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	tlsConfig := &tls.Config{
		ServerName:         c.cfg.Host,
		InsecureSkipVerify: !c.cfg.TLSVerify, //nolint:gosec // opt-in for self-signed servers
	}
	netDialer := &net.Dialer{Timeout: dialTimeout}

	if c.cfg.Secure {
		tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: tlsConfig}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to SMTP %s failed: %w", addr, err)
		}
		return smtp.NewClient(conn), nil
	}

	conn, err := netDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to SMTP %s failed: %w", addr, err)
	}
	client := smtp.NewClient(conn)
	if ok, _ := client.Extension("STARTTLS"); !ok {
		return client, nil
	}

	// STARTTLS is only reachable through NewClientStartTLS, which must own a
	// fresh connection, so the probing one is dropped.
	_ = client.Close()
	conn, err = netDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to SMTP %s failed: %w", addr, err)
	}
	client, err = smtp.NewClientStartTLS(conn, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("smtp.NewClientStartTLS failed: %w", err)
	}
	return client, nil
}

func (c *Client) submit(client *smtp.Client, sender string, rcpts []string, raw []byte) error {
	if c.cfg.User != "" && client.SupportsAuth(sasl.Plain) {
		if err := client.Auth(sasl.NewPlainClient("", c.cfg.User, c.cfg.Password)); err != nil {
			return fmt.Errorf("client.Auth failed: %w", err)
		}
	}

	if err := client.Mail(sender, nil); err != nil {
		return fmt.Errorf("client.Mail failed: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("client.Rcpt(%s) failed: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("client.Data failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing message failed: %w", err)
	}
	// Close only succeeds on a 250 reply to the end of data.
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data failed: %w", err)
	}

	return nil
}

func recipients(lists ...string) ([]string, error) {
	var out []string
	for _, list := range lists {
		if strings.TrimSpace(list) == "" {
			continue
		}
		addrs, err := mail.ParseAddressList(list)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient list %q: %w", list, err)
		}
		for _, a := range addrs {
			out = append(out, a.Address)
		}
	}
	return out, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i != -1 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

// acceptedResponse describes a 250 reply to the end of data. The relay's
// own reply text is not exposed by the SMTP client.
func acceptedResponse(rcpts int) string {
	return fmt.Sprintf("250 Message accepted for %d recipient(s)", rcpts)
}
