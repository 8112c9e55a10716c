package mailbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericIDFactory(t *testing.T) {
	f := &NumericIDFactory{}
	assert.Equal(t, ID("1"), f.Generate())
	assert.Equal(t, ID("2"), f.Generate())

	id, err := f.FromString(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, ID("42"), id)

	for _, bad := range []string{"", "abc", "-1", "1.5"} {
		_, err := f.FromString(bad)
		assert.Error(t, err, bad)
	}
}

func TestUUIDFactory(t *testing.T) {
	f := UUIDFactory{}
	id, err := f.FromString(f.Generate().String())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = f.FromString("42")
	assert.Error(t, err)
}

func TestParsers(t *testing.T) {
	uid, err := ParseMessageUID("10")
	require.NoError(t, err)
	assert.Equal(t, MessageUID(10), uid)
	_, err = ParseMessageUID("0")
	assert.Error(t, err)

	u, err := ParseUsername(" bob@example.com ")
	require.NoError(t, err)
	assert.Equal(t, Username("bob@example.com"), u)
	_, err = ParseUsername("bob smith")
	assert.Error(t, err)

	_, err = ParseMessageID("not-a-uuid")
	assert.Error(t, err)
}

func TestMemoryRepository_Mailboxes(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository(&NumericIDFactory{})

	inbox, err := r.CreateMailbox(ctx, "bob", "INBOX")
	require.NoError(t, err)
	_, err = r.CreateMailbox(ctx, "alice", "INBOX")
	require.NoError(t, err)
	_, err = r.CreateMailbox(ctx, "bob", "INBOX")
	assert.ErrorIs(t, err, ErrMailboxExists)

	found, err := r.FindMailbox(ctx, "bob", "INBOX")
	require.NoError(t, err)
	assert.Equal(t, inbox, found)

	all, err := r.ListMailboxes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bobs, err := r.ListUserMailboxes(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []Mailbox{inbox}, bobs)

	require.NoError(t, r.DeleteMailbox(ctx, inbox.ID))
	_, err = r.GetMailbox(ctx, inbox.ID)
	assert.ErrorIs(t, err, ErrMailboxNotFound)
	assert.ErrorIs(t, r.DeleteMailbox(ctx, inbox.ID), ErrMailboxNotFound)
}

func TestMemoryRepository_Messages(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository(&NumericIDFactory{})
	inbox, err := r.CreateMailbox(ctx, "bob", "INBOX")
	require.NoError(t, err)
	archive, err := r.CreateMailbox(ctx, "bob", "Archive")
	require.NoError(t, err)

	m1, err := r.Append(ctx, inbox.ID, Message{Subject: "hello", To: []string{"bob@example.com"}})
	require.NoError(t, err)
	m2, err := r.Append(ctx, inbox.ID, Message{Subject: "again"})
	require.NoError(t, err)
	assert.Equal(t, MessageUID(1), m1.UID)
	assert.Equal(t, MessageUID(2), m2.UID)
	assert.NotEmpty(t, m1.MessageID)

	uids, err := r.ListUIDs(ctx, inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, []MessageUID{1, 2}, uids)

	moved, err := r.Move(ctx, inbox.ID, m1.UID, archive.ID)
	require.NoError(t, err)
	assert.Equal(t, archive.ID, moved.MailboxID)
	assert.Equal(t, MessageUID(1), moved.UID)
	assert.Equal(t, m1.MessageID, moved.MessageID)

	_, err = r.GetMessage(ctx, inbox.ID, m1.UID)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	byID, err := r.FindByMessageID(ctx, m1.MessageID)
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, archive.ID, byID[0].MailboxID)

	_, err = r.ListUIDs(ctx, "404")
	assert.ErrorIs(t, err, ErrMailboxNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository(&NumericIDFactory{})
	inbox, err := r.CreateMailbox(ctx, "bob", "INBOX")
	require.NoError(t, err)
	m, err := r.Append(ctx, inbox.ID, Message{To: []string{"a@example.com"}})
	require.NoError(t, err)

	m.To[0] = "changed"
	again, err := r.GetMessage(ctx, inbox.ID, m.UID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, again.To)
}
