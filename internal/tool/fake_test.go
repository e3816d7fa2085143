package tool_test

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/hal9000y/mail-mcp/internal/mailbox"
	"github.com/hal9000y/mail-mcp/internal/smtpmail"
)

type storedMessage struct {
	uid   uint32
	flags []string
	raw   []byte
}

// sessionFake is an in-memory mail store. Folder names in boxes are the
// mailbox names used by OpenFolder and Append.
type sessionFake struct {
	tree     mailbox.FolderTree
	boxes    map[string][]*storedMessage
	nextUID  uint32
	selected string

	criteria []mailbox.Criteria
	calls    []string
	closed   int

	searchPanic bool
	appendErr   error
}

func newSessionFake(tree mailbox.FolderTree, folders ...string) *sessionFake {
	s := &sessionFake{tree: tree, boxes: map[string][]*storedMessage{}, nextUID: 100}
	for _, f := range folders {
		s.boxes[f] = nil
	}
	return s
}

func (s *sessionFake) add(folder string, raw []byte, flags ...string) uint32 {
	s.nextUID++
	s.boxes[folder] = append(s.boxes[folder], &storedMessage{uid: s.nextUID, flags: flags, raw: raw})
	return s.nextUID
}

func (s *sessionFake) ListFolders() (mailbox.FolderTree, error) {
	s.calls = append(s.calls, "list")
	return s.tree, nil
}

func (s *sessionFake) OpenFolder(name string) error {
	s.calls = append(s.calls, "open "+name)
	if _, ok := s.boxes[name]; !ok {
		return fmt.Errorf("selecting %s failed: NO Mailbox doesn't exist", name)
	}
	s.selected = name
	return nil
}

func (s *sessionFake) Search(criteria mailbox.Criteria, spec mailbox.FetchSpec) ([]mailbox.Message, error) {
	if s.searchPanic {
		panic("connection reset")
	}
	if s.selected == "" {
		return nil, fmt.Errorf("no folder selected")
	}
	s.criteria = append(s.criteria, criteria)

	var out []mailbox.Message
	for i, m := range s.boxes[s.selected] {
		if criteria.UID != 0 && m.uid != criteria.UID {
			continue
		}
		if criteria.Unseen && slices.Contains(m.flags, mailbox.FlagSeen) {
			continue
		}
		msg := mailbox.Message{SeqNum: uint32(i + 1), UID: m.uid}
		if spec.Flags {
			msg.Flags = m.flags
		}
		if spec.Header {
			msg.Header = headerOf(m.raw)
		}
		if spec.Body {
			msg.Body = m.raw
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *sessionFake) Append(folder string, raw []byte, flags []string) error {
	s.calls = append(s.calls, "append "+folder)
	if s.appendErr != nil {
		return s.appendErr
	}
	if _, ok := s.boxes[folder]; !ok {
		return fmt.Errorf("append to %s failed: NO [TRYCREATE]", folder)
	}
	s.add(folder, raw, flags...)
	return nil
}

func (s *sessionFake) AddFlags(uid uint32, flags ...string) error {
	s.calls = append(s.calls, fmt.Sprintf("flag %d", uid))
	for _, m := range s.boxes[s.selected] {
		if m.uid == uid {
			m.flags = append(m.flags, flags...)
		}
	}
	return nil
}

func (s *sessionFake) CloseFolder(expunge bool) error {
	s.calls = append(s.calls, fmt.Sprintf("close expunge=%t", expunge))
	if expunge {
		s.boxes[s.selected] = slices.DeleteFunc(s.boxes[s.selected], func(m *storedMessage) bool {
			return slices.Contains(m.flags, mailbox.FlagDeleted)
		})
	}
	s.selected = ""
	return nil
}

func (s *sessionFake) Close() error {
	s.closed++
	return nil
}

type dialerFake struct {
	sess  *sessionFake
	err   error
	dials int
}

func (d *dialerFake) Dial(_ context.Context) (mailbox.Session, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.sess, nil
}

type transferMock struct {
	calls   []smtpmail.Message
	receipt *smtpmail.Receipt
	err     error
}

func (m *transferMock) Deliver(_ context.Context, msg smtpmail.Message) (*smtpmail.Receipt, error) {
	m.calls = append(m.calls, msg)
	if m.err != nil {
		return nil, m.err
	}
	return m.receipt, nil
}

func headerOf(raw []byte) []byte {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i != -1 {
		return raw[:i+4]
	}
	return raw
}

func rawMessage(subject, date string) []byte {
	return []byte("From: Alice <alice@example.com>\r\n" +
		"To: me@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: " + date + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Body of " + subject + "\r\n")
}
