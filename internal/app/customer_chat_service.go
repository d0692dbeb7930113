package app

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"shopadmin-livechat/internal/model"
)

// CustomerChatService is the customer-facing half of support chat: opening a
// session, writing into it and polling for replies.
type CustomerChatService struct {
	sessions      SessionStore
	messages      MessageStore
	cache         SessionListCache
	logger        *slog.Logger
	now           func() time.Time
	maxMessageLen int
}

type StartChatInput struct {
	UserID   uint
	Subject  string
	Priority string
}

// NewCustomerChatService builds the service. maxMessageLen <= 0 leaves
// customer messages unbounded.
func NewCustomerChatService(
	sessions SessionStore,
	messages MessageStore,
	cache SessionListCache,
	logger *slog.Logger,
	maxMessageLen int,
) *CustomerChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CustomerChatService{
		sessions:      sessions,
		messages:      messages,
		cache:         cache,
		logger:        logger,
		now:           time.Now,
		maxMessageLen: maxMessageLen,
	}
}

// StartChat opens a pending session, or returns the customer's session that
// is still pending or active.
func (s *CustomerChatService) StartChat(ctx context.Context, input StartChatInput) (*model.ChatSession, bool, error) {
	if input.UserID == 0 {
		return nil, false, ErrInvalidInput
	}
	priority := model.ChatPriority(strings.ToLower(strings.TrimSpace(input.Priority)))
	if priority == "" {
		priority = model.ChatPriorityMedium
	}
	if !priority.Valid() {
		return nil, false, ErrInvalidInput
	}
	subject := strings.TrimSpace(input.Subject)
	if utf8.RuneCountInString(subject) > 255 {
		return nil, false, ErrInvalidInput
	}

	existing, err := s.sessions.FindOpenByUserID(ctx, input.UserID)
	if err != nil {
		return nil, false, storeErr("find open session", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	now := s.now()
	session := &model.ChatSession{
		UserID:       input.UserID,
		Status:       model.ChatStatusPending,
		Subject:      subject,
		Priority:     priority,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		// A concurrent start for the same customer took the open slot first.
		winner, findErr := s.sessions.FindOpenByUserID(ctx, input.UserID)
		if findErr == nil && winner != nil {
			return winner, false, nil
		}
		return nil, false, storeErr("create session", err)
	}
	s.invalidate(ctx)
	s.logger.Info("chat session requested", "session_id", session.ID, "user_id", input.UserID, "priority", priority)
	return session, true, nil
}

func (s *CustomerChatService) PostMessage(ctx context.Context, sessionID, userID uint, text string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if sessionID == 0 || userID == 0 || text == "" {
		return nil, ErrInvalidInput
	}
	if s.maxMessageLen > 0 && utf8.RuneCountInString(text) > s.maxMessageLen {
		return nil, ErrInvalidInput
	}

	session, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, ErrInvalidState
	}

	message := &model.ChatMessage{
		SessionID:   sessionID,
		SenderType:  model.SenderUser,
		SenderID:    &userID,
		Message:     text,
		MessageType: model.MessageTypeNormal,
		CreatedAt:   s.now(),
	}
	if err := appendGuarded(ctx, s.sessions, message, model.ChatStatusPending, model.ChatStatusActive); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return message, nil
}

// FetchMessages mirrors the admin delta; admin and system messages it
// delivers are marked read by the customer.
func (s *CustomerChatService) FetchMessages(ctx context.Context, sessionID, userID, sinceMessageID uint) (*FetchMessagesResult, error) {
	if sessionID == 0 || userID == 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return deliver(ctx, session, s.messages, sinceMessageID, nil, model.SenderAdmin, model.SenderSystem)
}

// owned loads the session and hides sessions of other customers behind
// ErrSessionNotFound.
func (s *CustomerChatService) owned(ctx context.Context, sessionID, userID uint) (*model.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, storeErr("load session", err)
	}
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *CustomerChatService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate session list cache failed", "error", err)
	}
}
