package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shopadmin-livechat/internal/app"
	"shopadmin-livechat/internal/transport/http/response"
)

const internalErrorMessage = "an error occurred"

// writeError maps a chat service error onto the response envelope. Anything
// unrecognised is logged and reported without detail.
func writeError(c *gin.Context, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, app.ErrInvalidInput.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, app.ErrSessionNotFound.Error())
	case errors.Is(err, app.ErrInvalidState):
		response.Error(c, http.StatusConflict, response.CodeInvalidState, app.ErrInvalidState.Error())
	case errors.Is(err, app.ErrStateConflict):
		response.Error(c, http.StatusConflict, response.CodeStateConflict, app.ErrStateConflict.Error())
	default:
		logger.Error(op+" failed", "path", c.FullPath(), "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, internalErrorMessage)
	}
}

// parseID reads a positive id. An empty value yields zero when optional.
func parseID(raw string, optional bool) (uint, bool) {
	if raw == "" {
		return 0, optional
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	if v == 0 && !optional {
		return 0, false
	}
	return uint(v), true
}
