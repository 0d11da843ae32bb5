package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/steveyegge/vitality/internal/types"
)

// ConsoleSender writes notifications to a writer. It stands in for a real
// email or push transport.
type ConsoleSender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSender creates a console sender writing to w
func NewConsoleSender(w io.Writer) *ConsoleSender {
	return &ConsoleSender{w: w}
}

// Send prints the notification
func (c *ConsoleSender) Send(ctx context.Context, job *types.NotificationJob) error {
	if err := ctx.Err(); err != nil {
		return Transient(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cyan := color.New(color.FgCyan).SprintFunc()
	subject := job.Payload.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	if _, err := fmt.Fprintf(c.w, "%s %s: %s\n  %s\n", cyan("→"), job.Recipient, subject, job.Payload.Body); err != nil {
		return Transient(fmt.Errorf("failed to write notification: %w", err))
	}
	return nil
}

// InboxStore persists in-app notifications. AddInboxItem returns a
// *types.NotFoundError when the subject does not exist.
type InboxStore interface {
	AddInboxItem(ctx context.Context, item *types.InboxItem) error
}

// InboxSender delivers to the subject's in-app inbox. The job recipient is the subject id.
type InboxSender struct {
	store InboxStore
	now   func() time.Time
	newID func() string
}

// NewInboxSender creates an inbox sender
func NewInboxSender(store InboxStore) *InboxSender {
	return &InboxSender{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Send stores the notification in the recipient's inbox.
// Writing the same job twice is idempotent at the store level (keyed by job id).
func (s *InboxSender) Send(ctx context.Context, job *types.NotificationJob) error {
	item := &types.InboxItem{
		ID:        s.newID(),
		SubjectID: job.Recipient,
		Subject:   job.Payload.Subject,
		Body:      job.Payload.Body,
		Source:    job.Payload.Source,
		JobID:     job.ID,
		CreatedAt: s.now(),
	}
	if err := s.store.AddInboxItem(ctx, item); err != nil {
		if types.IsNotFound(err) || types.IsValidation(err) {
			return Permanent(err)
		}
		return err
	}
	return nil
}

// SubjectDirectory resolves subject ids to contact details
type SubjectDirectory interface {
	GetSubject(ctx context.Context, id string) (*types.Subject, error)
}

// DirectorySender resolves the job's subject id to an email address and hands
// an addressed copy of the job to next. Unknown subjects or unusable addresses
// are permanent failures.
type DirectorySender struct {
	dir  SubjectDirectory
	next Sender
}

// NewDirectorySender creates a directory sender in front of next
func NewDirectorySender(dir SubjectDirectory, next Sender) *DirectorySender {
	return &DirectorySender{dir: dir, next: next}
}

// Send resolves the recipient and forwards
func (s *DirectorySender) Send(ctx context.Context, job *types.NotificationJob) error {
	subject, err := s.dir.GetSubject(ctx, job.Recipient)
	if err != nil {
		if types.IsNotFound(err) {
			return Permanent(err)
		}
		return fmt.Errorf("failed to resolve recipient %s: %w", job.Recipient, err)
	}
	email := strings.TrimSpace(subject.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Permanent(types.NewValidationError("email", "subject %s has no usable address", subject.ID))
	}

	addressed := *job
	addressed.Recipient = email
	return s.next.Send(ctx, &addressed)
}
