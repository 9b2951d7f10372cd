package services

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories/repomanager"
)

// MailboxService stores and reads messages. Every listing of a user's own
// mailbox marks that user's unread messages as read afterwards.
type MailboxService struct {
	repomanager repomanager.RepositoryManager
	ids         *IDGenerator
	limits      Limits
	now         func() time.Time

	// enqueue holds one lock per recipient so the quota check and the save
	// of a send happen as one step.
	enqueueMu sync.Mutex
	enqueue   map[string]*sync.Mutex
}

// NewMailboxService constructs a MailboxService. A nil now uses time.Now.
func NewMailboxService(m repomanager.RepositoryManager, ids *IDGenerator, limits Limits, now func() time.Time) *MailboxService {
	if now == nil {
		now = time.Now
	}
	return &MailboxService{
		repomanager: m,
		ids:         ids,
		limits:      limits.withDefaults(),
		now:         now,
		enqueue:     map[string]*sync.Mutex{},
	}
}

func (s *MailboxService) recipientLock(recipient string) *sync.Mutex {
	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()
	mu, ok := s.enqueue[recipient]
	if !ok {
		mu = &sync.Mutex{}
		s.enqueue[recipient] = mu
	}
	return mu
}

func (s *MailboxService) messages() repositories.Repository[models.Message] {
	return s.repomanager.Messages()
}

func (s *MailboxService) inbox(ctx context.Context, username string) ([]*models.Message, error) {
	msgs, err := s.messages().FindByField(ctx, models.MessageRecipient, NormalizeUsername(username))
	if err != nil {
		return nil, common.Storage(err)
	}
	return msgs, nil
}

// UnreadCount returns the number of unread messages held for username.
func (s *MailboxService) UnreadCount(ctx context.Context, username string) (int, error) {
	msgs, err := s.inbox(ctx, username)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range msgs {
		if !m.Read {
			n++
		}
	}
	return n, nil
}

// Enqueue stores a message from sender to recipient. The checks run in a
// fixed order: required fields, recipient existence, recipient quota, body
// length, then sanitization. Nothing is stored when any check fails.
func (s *MailboxService) Enqueue(ctx context.Context, recipientExists func(context.Context, string) (bool, error), recipient, sender, body string) (*models.Message, error) {
	recipient = NormalizeUsername(recipient)
	if recipient == "" || body == "" {
		return nil, common.Validation("Receiver and message text are required")
	}

	ok, err := recipientExists(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.Business("User %s does not exist", recipient)
	}

	// concurrent sends to one recipient must not all pass the quota check
	mu := s.recipientLock(recipient)
	mu.Lock()
	defer mu.Unlock()

	unread, err := s.UnreadCount(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if unread >= s.limits.MailboxQuota {
		return nil, common.Business("Mailbox of %s is full", recipient)
	}

	if utf8.RuneCountInString(body) > s.limits.MaxMessageLength {
		return nil, common.Validation("Message is too long (max %d characters)", s.limits.MaxMessageLength)
	}
	text := Sanitize(body)
	if text == "" {
		return nil, common.Validation("Message is empty after removing invalid characters")
	}

	m := &models.Message{
		ID:        s.ids.Next(),
		Recipient: recipient,
		Sender:    NormalizeUsername(sender),
		Text:      text,
		SendTime:  s.now().UTC(),
	}
	if err := s.messages().Save(ctx, m); err != nil {
		return nil, common.Storage(err)
	}
	return m, nil
}

// ListUnread returns the unread messages of username and then marks them read.
func (s *MailboxService) ListUnread(ctx context.Context, username string) ([]*models.Message, error) {
	msgs, err := s.inbox(ctx, username)
	if err != nil {
		return nil, err
	}
	unread := filter(msgs, func(m *models.Message) bool { return !m.Read })
	if err := s.markRead(ctx, unread); err != nil {
		return nil, err
	}
	return unread, nil
}

// ListAll returns every message of username and then marks the unread ones read.
func (s *MailboxService) ListAll(ctx context.Context, username string) ([]*models.Message, error) {
	msgs, err := s.inbox(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.markRead(ctx, filter(msgs, func(m *models.Message) bool { return !m.Read })); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListFromSender returns the messages of username sent by sender and then
// marks all unread messages of username read.
func (s *MailboxService) ListFromSender(ctx context.Context, username, sender string) ([]*models.Message, error) {
	return s.ListOtherFromSender(ctx, username, username, sender)
}

// ListOtherFromSender returns the messages of username sent by sender. The
// unread messages marked read afterwards are the requester's own, not those
// of username.
func (s *MailboxService) ListOtherFromSender(ctx context.Context, requester, username, sender string) ([]*models.Message, error) {
	msgs, err := s.inbox(ctx, username)
	if err != nil {
		return nil, err
	}
	sender = NormalizeUsername(sender)
	fromSender := filter(msgs, func(m *models.Message) bool { return m.Sender == sender })

	if err := s.MarkAllRead(ctx, requester); err != nil {
		return nil, err
	}
	return fromSender, nil
}

// MarkAllRead flips every unread message of username to read.
func (s *MailboxService) MarkAllRead(ctx context.Context, username string) error {
	msgs, err := s.inbox(ctx, username)
	if err != nil {
		return err
	}
	return s.markRead(ctx, filter(msgs, func(m *models.Message) bool { return !m.Read }))
}

// markRead stamps msgs as read in storage. The passed values keep their
// previous state so callers can still tell which messages were new.
func (s *MailboxService) markRead(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	at := s.now().UTC()
	for _, m := range msgs {
		if _, err := s.messages().Update(ctx, m.ID, repositories.Fields{
			models.MessageRead:     true,
			models.MessageReadTime: at,
		}); err != nil {
			return common.Storage(err)
		}
	}
	return nil
}

func filter(msgs []*models.Message, keep func(*models.Message) bool) []*models.Message {
	out := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
