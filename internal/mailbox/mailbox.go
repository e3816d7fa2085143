// Package mailbox provides authenticated IMAP sessions and folder helpers.
package mailbox

import (
	"context"
	"errors"
	"time"

	"github.com/emersion/go-imap/v2"
)

// ErrAuthentication indicates the mail store rejected the account credentials.
var ErrAuthentication = errors.New("authentication failed")

// Flags understood by Session.Append and Session.AddFlags.
const (
	FlagSeen    = string(imap.FlagSeen)
	FlagDeleted = string(imap.FlagDeleted)
	FlagDraft   = string(imap.FlagDraft)
)

// Dialer opens a fresh authenticated session.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Session is a single authenticated connection to the mail store.
//
// Close must be called exactly once, regardless of the outcome of the other calls.
type Session interface {
	ListFolders() (FolderTree, error)
	OpenFolder(name string) error
	// Search returns matching messages ordered by ascending sequence number.
	Search(criteria Criteria, spec FetchSpec) ([]Message, error)
	Append(folder string, raw []byte, flags []string) error
	AddFlags(uid uint32, flags ...string) error
	CloseFolder(expunge bool) error
	Close() error
}

// Criteria selects messages in the opened folder. The zero value matches ALL.
// Non-empty fields are combined conjunctively.
type Criteria struct {
	UID     uint32
	Unseen  bool
	Since   time.Time
	Subject string
	From    string
	Body    string
}

// FetchSpec describes which message parts Search returns.
type FetchSpec struct {
	Header bool
	Body   bool
	Flags  bool
	// Last limits the fetch to the trailing Last matches, 0 fetches all.
	Last int
}

// Message is a fetched message. Header and Body hold raw RFC 5322 bytes and
// are only populated when requested in FetchSpec.
type Message struct {
	SeqNum uint32
	UID    uint32
	Flags  []string
	Header []byte
	Body   []byte
}
