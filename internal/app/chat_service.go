package app

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"shopadmin-livechat/internal/model"
)

// MaxAdminMessageLength bounds admin-authored messages, counted in characters.
const MaxAdminMessageLength = 500

var adminListStatuses = []model.ChatStatus{
	model.ChatStatusPending,
	model.ChatStatusActive,
	model.ChatStatusClosed,
}

// ChatService implements the admin side of live support chat. It keeps no
// state between calls; every operation reads and writes the stores.
type ChatService struct {
	sessions SessionStore
	messages MessageStore
	cache    SessionListCache
	events   ChatEventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

type ChatServiceOption func(*ChatService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ChatServiceOption {
	return func(s *ChatService) { s.now = now }
}

func NewChatService(
	sessions SessionStore,
	messages MessageStore,
	cache SessionListCache,
	events ChatEventPublisher,
	logger *slog.Logger,
	opts ...ChatServiceOption,
) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ChatService{
		sessions: sessions,
		messages: messages,
		cache:    cache,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchMessagesResult is the delta returned to a polling client.
type FetchMessagesResult struct {
	SessionID     uint                `json:"session_id"`
	Status        model.ChatStatus    `json:"status"`
	Messages      []model.ChatMessage `json:"messages"`
	LastMessageID uint                `json:"last_message_id"`
	MarkedRead    int64               `json:"marked_read"`
}

func (s *ChatService) ListSessions(ctx context.Context) ([]model.ChatSessionSummary, error) {
	version := int64(-1)
	if s.cache != nil {
		if cached, hit, err := s.cache.GetSessions(ctx); err == nil && hit {
			return cached, nil
		}
		if v, err := s.cache.Version(ctx); err == nil {
			version = v
		}
	}

	sessions, err := s.sessions.ListWithUnread(ctx, adminListStatuses)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	if sessions == nil {
		sessions = []model.ChatSessionSummary{}
	}

	if s.cache != nil && version >= 0 {
		if _, err := s.cache.SetSessions(ctx, sessions, version); err != nil {
			s.logger.Warn("cache session list failed", "error", err)
		}
	}
	return sessions, nil
}

// FetchMessages returns messages newer than sinceMessageID and marks the
// customer messages it delivers as read by the admin side.
func (s *ChatService) FetchMessages(ctx context.Context, sessionID, sinceMessageID uint) (*FetchMessagesResult, error) {
	if sessionID == 0 {
		return nil, ErrInvalidInput
	}
	return fetchDelta(ctx, s.sessions, s.messages, sessionID, sinceMessageID, s.invalidate, model.SenderUser)
}

func (s *ChatService) SendMessage(ctx context.Context, sessionID, adminID uint, text string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if sessionID == 0 || adminID == 0 || text == "" {
		return nil, ErrInvalidInput
	}
	if utf8.RuneCountInString(text) > MaxAdminMessageLength {
		return nil, ErrInvalidInput
	}

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.ChatStatusActive {
		return nil, ErrInvalidState
	}

	message := &model.ChatMessage{
		SessionID:   sessionID,
		SenderType:  model.SenderAdmin,
		SenderID:    &adminID,
		Message:     text,
		MessageType: model.MessageTypeNormal,
		CreatedAt:   s.now(),
	}
	if err := appendGuarded(ctx, s.sessions, message, model.ChatStatusActive); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return message, nil
}

func (s *ChatService) AcceptChat(ctx context.Context, sessionID, adminID uint) (*model.ChatSession, error) {
	return s.transition(ctx, sessionID, adminID, eventAccept)
}

func (s *ChatService) DeclineChat(ctx context.Context, sessionID, adminID uint) (*model.ChatSession, error) {
	return s.transition(ctx, sessionID, adminID, eventDecline)
}

func (s *ChatService) EndChat(ctx context.Context, sessionID, adminID uint) (*model.ChatSession, error) {
	return s.transition(ctx, sessionID, adminID, eventEnd)
}

// ExpirePending declines every session that has been pending longer than
// timeout, attributing the decision to expiryAdminID. Sessions that another
// admin picks up concurrently are skipped.
func (s *ChatService) ExpirePending(ctx context.Context, timeout time.Duration, expiryAdminID uint) (int, error) {
	if timeout <= 0 || expiryAdminID == 0 {
		return 0, ErrInvalidInput
	}
	stale, err := s.sessions.ListPendingCreatedBefore(ctx, s.now().Add(-timeout), 100)
	if err != nil {
		return 0, storeErr("list expired sessions", err)
	}

	expired := 0
	for _, session := range stale {
		if _, err := s.transition(ctx, session.ID, expiryAdminID, eventExpire); err != nil {
			if isRaceLoss(err) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *ChatService) transition(ctx context.Context, sessionID, adminID uint, event chatEvent) (*model.ChatSession, error) {
	if sessionID == 0 || adminID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	tr, err := transitionFor(session.Status, event)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fields := map[string]interface{}{"last_activity": now}
	if tr.from == model.ChatStatusPending {
		fields["admin_id"] = adminID
		session.AdminID = &adminID
	}
	switch tr.to {
	case model.ChatStatusActive:
		fields["accepted_at"] = now
		session.AcceptedAt = &now
	case model.ChatStatusDeclined, model.ChatStatusClosed:
		fields["closed_at"] = now
		session.ClosedAt = &now
	}

	ok, err := s.sessions.Transition(ctx, sessionID, tr.from, tr.to, fields)
	if err != nil {
		return nil, storeErr("transition session", err)
	}
	if !ok {
		return nil, ErrStateConflict
	}
	session.Status = tr.to
	session.LastActivity = now

	// The status change already committed; a failed notice must not undo it.
	notice := &model.ChatMessage{
		SessionID:   sessionID,
		SenderType:  model.SenderSystem,
		Message:     tr.systemMessage,
		MessageType: model.MessageTypeSystem,
		CreatedAt:   now,
	}
	if err := s.messages.Create(ctx, notice); err != nil {
		s.logger.Error("append system message failed", "session_id", sessionID, "event", event, "error", err)
	}

	s.invalidate(ctx)
	s.publish(ctx, ChatEvent{
		ID:         uuid.NewString(),
		Action:     tr.auditAction,
		SessionID:  sessionID,
		AdminID:    adminID,
		OccurredAt: now,
	})

	s.logger.Info("chat session transitioned", "session_id", sessionID, "admin_id", adminID, "from", tr.from, "to", tr.to)
	return session, nil
}

func (s *ChatService) load(ctx context.Context, sessionID uint) (*model.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, storeErr("load session", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *ChatService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate session list cache failed", "error", err)
	}
}

func (s *ChatService) publish(ctx context.Context, event ChatEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish chat event failed", "action", event.Action, "session_id", event.SessionID, "error", err)
	}
}
