package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shopadmin-livechat/internal/model"
	"shopadmin-livechat/internal/repository"
	"shopadmin-livechat/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []ChatEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event ChatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

// stepClock hands out strictly increasing UTC times, one second apart.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// endBeforeAppend runs end once, right before the wrapped store appends a
// message, so the session leaves its status after the caller checked it.
type endBeforeAppend struct {
	SessionStore
	end func()
}

func (s *endBeforeAppend) AppendMessage(ctx context.Context, message *model.ChatMessage, statuses ...model.ChatStatus) (bool, error) {
	if s.end != nil {
		s.end()
		s.end = nil
	}
	return s.SessionStore.AppendMessage(ctx, message, statuses...)
}

func (f *chatFixture) messagesFrom(t *testing.T, sessionID uint, sender model.SenderType) []model.ChatMessage {
	t.Helper()
	list, err := f.messages.ListSince(context.Background(), sessionID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	var out []model.ChatMessage
	for _, m := range list {
		if m.SenderType == sender {
			out = append(out, m)
		}
	}
	return out
}

type chatFixture struct {
	sessions  *repository.ChatSessionRepository
	messages  *repository.ChatMessageRepository
	publisher *recordingPublisher
	clock     *stepClock
	admin     *ChatService
	customer  *CustomerChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &chatFixture{
		sessions:  repository.NewChatSessionRepository(db),
		messages:  repository.NewChatMessageRepository(db),
		publisher: &recordingPublisher{},
		clock:     newStepClock(),
	}
	f.admin = NewChatService(f.sessions, f.messages, nil, f.publisher, nil, WithClock(f.clock.Now))
	f.customer = NewCustomerChatService(f.sessions, f.messages, nil, nil, 0)
	f.customer.now = f.clock.Now
	return f
}

func (f *chatFixture) startChat(t *testing.T, userID uint) *model.ChatSession {
	t.Helper()
	session, created, err := f.customer.StartChat(context.Background(), StartChatInput{UserID: userID, Subject: "Order question"})
	if err != nil {
		t.Fatalf("start chat: %v", err)
	}
	if !created {
		t.Fatalf("expected a new session for user %d", userID)
	}
	return session
}

func (f *chatFixture) status(t *testing.T, sessionID uint) model.ChatStatus {
	t.Helper()
	session, err := f.sessions.GetByID(context.Background(), sessionID)
	if err != nil || session == nil {
		t.Fatalf("reload session %d: %v", sessionID, err)
	}
	return session.Status
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
