package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shopadmin-livechat/internal/app"
	"shopadmin-livechat/internal/model"
	"shopadmin-livechat/internal/transport/http/middleware"
	"shopadmin-livechat/internal/transport/http/response"
)

const (
	ActionListSessions = "list_sessions"
	ActionGetMessages  = "get_messages"
	ActionSendMessage  = "send_message"
	ActionAcceptChat   = "accept_chat"
	ActionDeclineChat  = "decline_chat"
	ActionEndChat      = "end_chat"
)

// AdminChatHandler serves the admin panel's chat controller: a single
// form-encoded endpoint dispatched on the "action" field, plus an SSE stream
// that repeats get_messages on an interval.
type AdminChatHandler struct {
	chatService  *app.ChatService
	logger       *slog.Logger
	pollInterval time.Duration
}

func NewAdminChatHandler(chatService *app.ChatService, logger *slog.Logger, pollInterval time.Duration) *AdminChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &AdminChatHandler{
		chatService:  chatService,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

func (h *AdminChatHandler) Handle(c *gin.Context) {
	adminID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	action := c.PostForm("action")
	switch action {
	case ActionListSessions:
		h.listSessions(c)
		return
	case ActionGetMessages, ActionSendMessage, ActionAcceptChat, ActionDeclineChat, ActionEndChat:
	default:
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unknown action")
		return
	}

	sessionID, ok := parseID(c.PostForm("session_id"), false)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session_id")
		return
	}

	switch action {
	case ActionGetMessages:
		since, ok := parseID(c.PostForm("since_message_id"), true)
		if !ok {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid since_message_id")
			return
		}
		result, err := h.chatService.FetchMessages(c.Request.Context(), sessionID, since)
		if err != nil {
			writeError(c, h.logger, action, err)
			return
		}
		response.OK(c, result)
	case ActionSendMessage:
		message, err := h.chatService.SendMessage(c.Request.Context(), sessionID, adminID, c.PostForm("message"))
		if err != nil {
			writeError(c, h.logger, action, err)
			return
		}
		response.OK(c, gin.H{"message": message})
	case ActionAcceptChat:
		h.transition(c, action, h.chatService.AcceptChat, sessionID, adminID)
	case ActionDeclineChat:
		h.transition(c, action, h.chatService.DeclineChat, sessionID, adminID)
	case ActionEndChat:
		h.transition(c, action, h.chatService.EndChat, sessionID, adminID)
	}
}

func (h *AdminChatHandler) listSessions(c *gin.Context) {
	sessions, err := h.chatService.ListSessions(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, ActionListSessions, err)
		return
	}
	response.OK(c, gin.H{"sessions": sessions})
}

type transitionFunc func(ctx context.Context, sessionID, adminID uint) (*model.ChatSession, error)

func (h *AdminChatHandler) transition(c *gin.Context, action string, fn transitionFunc, sessionID, adminID uint) {
	session, err := fn(c.Request.Context(), sessionID, adminID)
	if err != nil {
		writeError(c, h.logger, action, err)
		return
	}
	response.OK(c, gin.H{"session": session})
}

// Stream pushes the get_messages delta as server-sent events. It sends a
// "status" event whenever the session status changes and returns once the
// session is terminal or the client goes away.
func (h *AdminChatHandler) Stream(c *gin.Context) {
	sessionID, ok := parseID(c.Param("id"), false)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}
	since, ok := parseID(c.Query("since_message_id"), true)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid since_message_id")
		return
	}

	ctx := c.Request.Context()
	result, err := h.chatService.FetchMessages(ctx, sessionID, since)
	if err != nil {
		writeError(c, h.logger, "stream messages", err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastStatus model.ChatStatus
	for {
		if len(result.Messages) > 0 {
			c.SSEvent("messages", result)
			since = result.LastMessageID
		}
		if result.Status != lastStatus {
			c.SSEvent("status", gin.H{"session_id": result.SessionID, "status": result.Status})
			lastStatus = result.Status
		}
		c.Writer.Flush()
		if result.Status.Terminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result, err = h.chatService.FetchMessages(ctx, sessionID, since)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Error("stream messages failed", "session_id", sessionID, "error", err)
			c.SSEvent("error", gin.H{"message": internalErrorMessage})
			c.Writer.Flush()
			return
		}
	}
}
