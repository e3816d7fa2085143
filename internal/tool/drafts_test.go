package tool_test

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/mail-mcp/internal/mailbox"
	"github.com/hal9000y/mail-mcp/internal/message"
	"github.com/hal9000y/mail-mcp/internal/tool"
)

func TestCreateDraft(t *testing.T) {
	cases := []struct {
		name   string
		tree   mailbox.FolderTree
		folder string
	}{
		{name: "nested under inbox", tree: inboxTree(), folder: "INBOX.Drafts"},
		{name: "gmail", tree: gmailTree(), folder: "[Gmail]/Drafts"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := newSessionFake(tc.tree, tc.folder)
			d := newDispatcher(testConfig, &dialerFake{sess: sess}, nil)

			res := d.Handle(context.Background(), tool.CreateDraft, map[string]any{
				"to":      "alice@example.com",
				"subject": "Lunch",
				"body":    "Noon?",
			})

			assert.False(t, res.IsError)
			assert.Equal(t, "Draft created in "+tc.folder, resultText(t, res))
			require.Len(t, sess.boxes[tc.folder], 1)

			stored := sess.boxes[tc.folder][0]
			assert.Equal(t, []string{mailbox.FlagDraft}, stored.flags)
			assert.Equal(t, "From: Me <me@example.com>\r\n"+
				"To: alice@example.com\r\n"+
				"Subject: Lunch\r\n"+
				"Date: Fri, 14 Mar 2025 09:26:53 +0000\r\n"+
				"MIME-Version: 1.0\r\n"+
				"Content-Type: text/plain; charset=utf-8\r\n"+
				"\r\n"+
				"Noon?", string(stored.raw))
			assert.Equal(t, 1, sess.closed)
		})
	}
}

func TestCreateDraftHTML(t *testing.T) {
	sess := newSessionFake(inboxTree(), "INBOX.Drafts")
	d := newDispatcher(testConfig, &dialerFake{sess: sess}, nil)

	res := d.Handle(context.Background(), tool.CreateDraft, map[string]any{
		"to":      "alice@example.com",
		"cc":      "bob@example.com",
		"subject": "Menu",
		"html":    "<p>Pasta</p>",
	})
	require.False(t, res.IsError, resultText(t, res))

	decoded, err := message.Decoder{}.Decode(sess.boxes["INBOX.Drafts"][0].raw)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", decoded.Cc)
	assert.Equal(t, "<p>Pasta</p>", decoded.HTML)
	assert.Empty(t, decoded.Text)
}

func TestCreateDraftFallbackFolder(t *testing.T) {
	tree := mailbox.NewFolderTree([]mailbox.ListEntry{{Mailbox: "INBOX", Delimiter: '.'}})
	sess := newSessionFake(tree, "INBOX")
	d := newDispatcher(testConfig, &dialerFake{sess: sess}, nil)

	res := d.Handle(context.Background(), tool.CreateDraft, map[string]any{"to": "a@example.com", "subject": "s"})

	assert.True(t, res.IsError)
	assert.Equal(t, "Error: append to Drafts failed: NO [TRYCREATE]", resultText(t, res))
	assert.Equal(t, 1, sess.closed)
}

func TestListDrafts(t *testing.T) {
	sess := newSessionFake(gmailTree(), "[Gmail]/Drafts")
	first := sess.add("[Gmail]/Drafts", rawMessage("First", "Mon, 06 Jan 2025 10:00:00 +0000"), mailbox.FlagDraft)
	second := sess.add("[Gmail]/Drafts", rawMessage("Second", "Tue, 07 Jan 2025 10:00:00 +0000"), mailbox.FlagDraft)
	d := newDispatcher(testConfig, &dialerFake{sess: sess}, nil)

	got := decodeResult[tool.DraftList](t, d.Handle(context.Background(), tool.ListDrafts, nil))

	assert.Equal(t, "[Gmail]/Drafts", got.Folder)
	require.Len(t, got.Drafts, 2)
	assert.Equal(t, tool.MessageSummary{
		UID:     second,
		Date:    "Tue, 07 Jan 2025 10:00:00 +0000",
		From:    "Alice <alice@example.com>",
		To:      "me@example.com",
		Subject: "Second",
		Flags:   []string{mailbox.FlagDraft},
	}, got.Drafts[0])
	assert.Equal(t, first, got.Drafts[1].UID)
}

func TestGetDraft(t *testing.T) {
	sess := newSessionFake(inboxTree(), "INBOX.Drafts")
	uid := sess.add("INBOX.Drafts", rawMessage("Plan", "Mon, 06 Jan 2025 10:00:00 +0000"), mailbox.FlagDraft)
	d := newDispatcher(testConfig, &dialerFake{sess: sess}, nil)

	t.Run("found", func(t *testing.T) {
		res := d.Handle(context.Background(), tool.GetDraft, map[string]any{"uid": uid})
		got := decodeResult[tool.DraftDetail](t, res)

		assert.Equal(t, tool.DraftDetail{
			UID:     uid,
			From:    "Alice <alice@example.com>",
			To:      "me@example.com",
			Subject: "Plan",
			Date:    "Mon, 06 Jan 2025 10:00:00 +0000",
			Text:    "Body of Plan\r\n",
		}, got)
		assert.NotContains(t, resultText(t, res), "attachments")
	})

	t.Run("not found", func(t *testing.T) {
		res := d.Handle(context.Background(), tool.GetDraft, map[string]any{"uid": uid + 1})

		assert.False(t, res.IsError)
		assert.Equal(t, "Draft not found", resultText(t, res))
	})
}

func TestUpdateDraft(t *testing.T) {
	sess := newSessionFake(inboxTree(), "INBOX.Drafts")
	keep := sess.add("INBOX.Drafts", rawMessage("Other", "Mon, 06 Jan 2025 10:00:00 +0000"), mailbox.FlagDraft)
	old := sess.add("INBOX.Drafts", rawMessage("Old", "Mon, 06 Jan 2025 11:00:00 +0000"), mailbox.FlagDraft)
	d := newDispatcher(testConfig, &dialerFake{sess: sess}, nil)

	res := d.Handle(context.Background(), tool.UpdateDraft, map[string]any{
		"uid":     old,
		"to":      "alice@example.com",
		"subject": "New",
		"body":    "Rewritten",
	})

	assert.False(t, res.IsError)
	assert.Equal(t, fmt.Sprintf("Draft %d updated in INBOX.Drafts", old), resultText(t, res))
	assert.Equal(t, []string{
		"list",
		"open INBOX.Drafts",
		fmt.Sprintf("flag %d", old),
		"close expunge=true",
		"open INBOX.Drafts",
		"append INBOX.Drafts",
	}, sess.calls)

	drafts := sess.boxes["INBOX.Drafts"]
	require.Len(t, drafts, 2)
	assert.False(t, slices.ContainsFunc(drafts, func(m *storedMessage) bool { return m.uid == old }))
	assert.Equal(t, keep, drafts[0].uid)

	replacement := drafts[1]
	assert.NotEqual(t, old, replacement.uid)
	h, err := message.DecodeHeader(replacement.raw)
	require.NoError(t, err)
	assert.Equal(t, "New", h.Subject)
	assert.Equal(t, "alice@example.com", h.To)
	assert.Equal(t, "Me <me@example.com>", h.From)
}

func TestUpdateDraftAppendFailure(t *testing.T) {
	sess := newSessionFake(inboxTree(), "INBOX.Drafts")
	old := sess.add("INBOX.Drafts", rawMessage("Old", "Mon, 06 Jan 2025 11:00:00 +0000"), mailbox.FlagDraft)
	sess.appendErr = errAppend
	d := newDispatcher(testConfig, &dialerFake{sess: sess}, nil)

	res := d.Handle(context.Background(), tool.UpdateDraft, map[string]any{
		"uid":     old,
		"to":      "alice@example.com",
		"subject": "New",
	})

	assert.True(t, res.IsError)
	assert.Equal(t, fmt.Sprintf("Error: draft %d was removed but saving its replacement failed: %s", old, errAppend), resultText(t, res))
	assert.Empty(t, sess.boxes["INBOX.Drafts"])
	assert.Equal(t, 1, sess.closed)
}
