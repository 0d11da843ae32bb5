package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/vitality/internal/types"
)

func TestConsoleSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSender(&buf)
	job := types.NewJob("j1", "alex@example.com", types.Payload{Subject: "Reminder: water", Body: "Drink a glass of water"}, time.Now())

	require.NoError(t, s.Send(context.Background(), job))
	assert.Contains(t, buf.String(), "alex@example.com")
	assert.Contains(t, buf.String(), "Reminder: water")
	assert.Contains(t, buf.String(), "Drink a glass of water")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Send(ctx, job)
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

type fakeInbox struct {
	items []*types.InboxItem
	known map[string]bool
	err   error
}

func (f *fakeInbox) AddInboxItem(ctx context.Context, item *types.InboxItem) error {
	if f.err != nil {
		return f.err
	}
	if !f.known[item.SubjectID] {
		return types.NewNotFoundError("subject", item.SubjectID)
	}
	f.items = append(f.items, item)
	return nil
}

func TestInboxSender(t *testing.T) {
	inbox := &fakeInbox{known: map[string]bool{"s1": true}}
	s := NewInboxSender(inbox)

	job := types.NewJob("j1", "s1", types.Payload{Subject: "Q&A", Body: "Live session at 6pm", Source: "broadcast"}, time.Now())
	require.NoError(t, s.Send(context.Background(), job))
	require.Len(t, inbox.items, 1)
	assert.Equal(t, "j1", inbox.items[0].JobID)
	assert.Equal(t, "broadcast", inbox.items[0].Source)

	job.Recipient = "ghost"
	assert.True(t, IsPermanent(s.Send(context.Background(), job)))

	inbox.err = errors.New("database is locked")
	assert.False(t, IsPermanent(s.Send(context.Background(), job)))
}

type fakeDirectory map[string]*types.Subject

func (f fakeDirectory) GetSubject(ctx context.Context, id string) (*types.Subject, error) {
	s, ok := f[id]
	if !ok {
		return nil, types.NewNotFoundError("subject", id)
	}
	return s, nil
}

func TestDirectorySender(t *testing.T) {
	dir := fakeDirectory{
		"s1": {ID: "s1", Email: "sam@example.com"},
		"s2": {ID: "s2", Email: ""},
	}
	var got []*types.NotificationJob
	next := SenderFunc(func(ctx context.Context, job *types.NotificationJob) error {
		got = append(got, job)
		return nil
	})
	s := NewDirectorySender(dir, next)

	job := types.NewJob("j1", "s1", types.Payload{Body: "hello"}, time.Now())
	require.NoError(t, s.Send(context.Background(), job))
	require.Len(t, got, 1)
	assert.Equal(t, "sam@example.com", got[0].Recipient)
	assert.Equal(t, "s1", job.Recipient, "original job keeps the subject id")

	job.Recipient = "s2"
	assert.True(t, IsPermanent(s.Send(context.Background(), job)))
	job.Recipient = "unknown"
	assert.True(t, IsPermanent(s.Send(context.Background(), job)))
}
