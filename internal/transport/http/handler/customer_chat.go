package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopadmin-livechat/internal/app"
	"shopadmin-livechat/internal/transport/http/middleware"
	"shopadmin-livechat/internal/transport/http/response"
)

type CustomerChatHandler struct {
	chatService *app.CustomerChatService
	logger      *slog.Logger
}

type StartChatRequest struct {
	Subject  string `json:"subject" binding:"max=255"`
	Priority string `json:"priority"`
}

type PostMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

func NewCustomerChatHandler(chatService *app.CustomerChatService, logger *slog.Logger) *CustomerChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CustomerChatHandler{chatService: chatService, logger: logger}
}

func (h *CustomerChatHandler) StartChat(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req StartChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, created, err := h.chatService.StartChat(c.Request.Context(), app.StartChatInput{
		UserID:   userID,
		Subject:  req.Subject,
		Priority: req.Priority,
	})
	if err != nil {
		writeError(c, h.logger, "start chat", err)
		return
	}

	response.OK(c, gin.H{"session": session, "created": created})
}

func (h *CustomerChatHandler) PostMessage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	sessionID, ok := parseID(c.Param("id"), false)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	message, err := h.chatService.PostMessage(c.Request.Context(), sessionID, userID, req.Message)
	if err != nil {
		writeError(c, h.logger, "post message", err)
		return
	}

	response.OK(c, gin.H{"message": message})
}

func (h *CustomerChatHandler) FetchMessages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
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

	result, err := h.chatService.FetchMessages(c.Request.Context(), sessionID, userID, since)
	if err != nil {
		writeError(c, h.logger, "fetch messages", err)
		return
	}

	response.OK(c, result)
}
