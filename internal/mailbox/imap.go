package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/hal9000y/mail-mcp/internal/config"
)

// NewIMAPDialer creates a Dialer connecting to the configured IMAP server.
func NewIMAPDialer(cfg config.IMAP, logger *slog.Logger) *IMAPDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAPDialer{cfg: cfg, logger: logger}
}

// IMAPDialer opens one IMAP connection per Dial call. Connections are never pooled.
type IMAPDialer struct {
	cfg    config.IMAP
	logger *slog.Logger
}

// Dial connects, authenticates and returns a ready Session.
// Connect and login together are bounded by the configured auth timeout.
func (d *IMAPDialer) Dial(ctx context.Context) (Session, error) {
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	netDialer := &net.Dialer{Timeout: d.cfg.AuthTimeout}

	var (
		conn net.Conn
		err  error
	)
	if d.cfg.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: netDialer,
			Config: &tls.Config{
				ServerName:         d.cfg.Host,
				InsecureSkipVerify: !d.cfg.TLSVerify, //nolint:gosec // opt-in for self-signed servers
			},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s failed: %w", addr, err)
	}

	if d.cfg.AuthTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.cfg.AuthTimeout))
	}

	client := imapclient.New(conn, nil)
	if err := client.Login(d.cfg.User, d.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w for %s: %v", ErrAuthentication, d.cfg.User, err)
	}

	_ = conn.SetDeadline(time.Time{})

	d.logger.Debug("IMAP session opened", slog.String("addr", addr))

	return &imapSession{client: client, logger: d.logger}, nil
}

type imapSession struct {
	client *imapclient.Client
	logger *slog.Logger
}

func (s *imapSession) ListFolders() (FolderTree, error) {
	data, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("client.List failed: %w", err)
	}

	entries := make([]ListEntry, 0, len(data))
	for _, d := range data {
		attrs := make([]string, 0, len(d.Attrs))
		for _, a := range d.Attrs {
			attrs = append(attrs, string(a))
		}
		entries = append(entries, ListEntry{
			Mailbox:    d.Mailbox,
			Delimiter:  d.Delim,
			Attributes: attrs,
		})
	}

	return NewFolderTree(entries), nil
}

func (s *imapSession) OpenFolder(name string) error {
	if _, err := s.client.Select(name, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s failed: %w", name, err)
	}
	return nil
}

func (s *imapSession) Search(criteria Criteria, spec FetchSpec) ([]Message, error) {
	searchData, err := s.client.UIDSearch(searchCriteria(criteria), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("client.UIDSearch failed: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []Message{}, nil
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if spec.Last > 0 && len(uids) > spec.Last {
		uids = uids[len(uids)-spec.Last:]
	}

	headerSection := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierHeader, Peek: true}
	fullSection := &imap.FetchItemBodySection{Peek: true}

	opts := &imap.FetchOptions{UID: true, Flags: spec.Flags}
	if spec.Header {
		opts.BodySection = append(opts.BodySection, headerSection)
	}
	if spec.Body {
		opts.BodySection = append(opts.BodySection, fullSection)
	}

	bufs, err := s.client.Fetch(imap.UIDSetNum(uids...), opts).Collect()
	if err != nil {
		return nil, fmt.Errorf("client.Fetch failed: %w", err)
	}

	messages := make([]Message, 0, len(bufs))
	for _, buf := range bufs {
		msg := Message{
			SeqNum: buf.SeqNum,
			UID:    uint32(buf.UID),
		}
		for _, f := range buf.Flags {
			msg.Flags = append(msg.Flags, string(f))
		}
		if spec.Header {
			msg.Header = buf.FindBodySection(headerSection)
		}
		if spec.Body {
			msg.Body = buf.FindBodySection(fullSection)
		}
		messages = append(messages, msg)
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].SeqNum < messages[j].SeqNum })

	return messages, nil
}

func (s *imapSession) Append(folder string, raw []byte, flags []string) error {
	cmd := s.client.Append(folder, int64(len(raw)), &imap.AppendOptions{Flags: imapFlags(flags)})
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("writing message to %s failed: %w", folder, err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("closing append to %s failed: %w", folder, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s failed: %w", folder, err)
	}
	return nil
}

func (s *imapSession) AddFlags(uid uint32, flags ...string) error {
	store := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  imapFlags(flags),
	}
	if err := s.client.Store(imap.UIDSetNum(imap.UID(uid)), store, nil).Close(); err != nil {
		return fmt.Errorf("storing flags on UID %d failed: %w", uid, err)
	}
	return nil
}

func (s *imapSession) CloseFolder(expunge bool) error {
	var cmd *imapclient.Command
	if expunge {
		cmd = s.client.UnselectAndExpunge()
	} else {
		cmd = s.client.Unselect()
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("closing folder failed: %w", err)
	}
	return nil
}

func (s *imapSession) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		s.logger.Debug("IMAP logout failed", slog.String("error", err.Error()))
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("client.Close failed: %w", err)
	}
	return nil
}

func searchCriteria(c Criteria) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}

	if c.UID != 0 {
		criteria.UID = []imap.UIDSet{imap.UIDSetNum(imap.UID(c.UID))}
	}
	if c.Unseen {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}
	if !c.Since.IsZero() {
		criteria.Since = c.Since
	}
	if c.Subject != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "Subject", Value: c.Subject})
	}
	if c.From != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "From", Value: c.From})
	}
	if c.Body != "" {
		criteria.Body = []string{c.Body}
	}

	return criteria
}

func imapFlags(flags []string) []imap.Flag {
	out := make([]imap.Flag, 0, len(flags))
	for _, f := range flags {
		out = append(out, imap.Flag(f))
	}
	return out
}
