package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	appsvc "shopadmin-livechat/internal/app"
	"shopadmin-livechat/internal/model"
	"shopadmin-livechat/internal/pkg/jwtutil"
	"shopadmin-livechat/internal/repository"
	"shopadmin-livechat/internal/testutil"
	"shopadmin-livechat/internal/transport/http/response"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t          *testing.T
	router     *gin.Engine
	chat       *appsvc.ChatService
	adminToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repository.NewUserRepository(db)
	sessions := repository.NewChatSessionRepository(db)
	messages := repository.NewChatMessageRepository(db)

	admin := &model.User{Username: "agent", Email: "agent@example.com", PasswordHash: "unused", Role: model.RoleAdmin}
	if err := users.Create(context.Background(), admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	adminToken, err := jwtutil.GenerateToken(testSecret, time.Hour, admin.ID, admin.Username, model.RoleAdmin)
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}

	chat := appsvc.NewChatService(sessions, messages, nil, nil, logger)
	router := gin.New()
	RegisterAPI(router, Services{
		Auth:           appsvc.NewAuthService(users, testSecret, time.Hour),
		Chat:           chat,
		CustomerChat:   appsvc.NewCustomerChatService(sessions, messages, nil, logger, 0),
		JWTSecret:      testSecret,
		StreamInterval: 10 * time.Millisecond,
		Logger:         logger,
	})
	return &testServer{t: t, router: router, chat: chat, adminToken: adminToken}
}

func (s *testServer) do(req *nethttp.Request, token string) (int, envelope, string) {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec.Code, env, rec.Body.String()
}

func (s *testServer) postJSON(path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		s.t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(nethttp.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	code, env, _ := s.do(req, token)
	return code, env
}

func (s *testServer) adminAction(token string, form url.Values) (int, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(nethttp.MethodPost, "/api/v1/admin/chat", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, env, _ := s.do(req, token)
	return code, env
}

func (s *testServer) registerCustomer(name string) string {
	s.t.Helper()
	code, env := s.postJSON("/api/v1/auth/register", "", map[string]string{
		"username": name,
		"email":    name + "@example.com",
		"password": "password123",
	})
	if code != nethttp.StatusOK || !env.Success {
		s.t.Fatalf("register %s: %d %+v", name, code, env)
	}
	var data struct {
		Token string `json:"token"`
	}
	decodeData(s.t, env, &data)
	return data.Token
}

func (s *testServer) startChat(token string) uint {
	s.t.Helper()
	code, env := s.postJSON("/api/v1/chat/sessions", token, map[string]string{"subject": "Where is my order?"})
	if code != nethttp.StatusOK || !env.Success {
		s.t.Fatalf("start chat: %d %+v", code, env)
	}
	var data struct {
		Session model.ChatSession `json:"session"`
		Created bool              `json:"created"`
	}
	decodeData(s.t, env, &data)
	if !data.Created || data.Session.Status != model.ChatStatusPending {
		s.t.Fatalf("unexpected start result %+v", data)
	}
	return data.Session.ID
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func sessionForm(action string, sessionID uint) url.Values {
	return url.Values{"action": {action}, "session_id": {fmt.Sprint(sessionID)}}
}

func TestAdminChatOverHTTP(t *testing.T) {
	s := newTestServer(t)
	customer := s.registerCustomer("shopper")
	sessionID := s.startChat(customer)

	code, env := s.postJSON(fmt.Sprintf("/api/v1/chat/sessions/%d/messages", sessionID), customer, map[string]string{"message": "Hi, my parcel is missing"})
	if code != nethttp.StatusOK {
		t.Fatalf("customer message: %d %+v", code, env)
	}

	code, env = s.adminAction(s.adminToken, url.Values{"action": {"list_sessions"}})
	if code != nethttp.StatusOK || !env.Success {
		t.Fatalf("list sessions: %d %+v", code, env)
	}
	var listed struct {
		Sessions []model.ChatSessionSummary `json:"sessions"`
	}
	decodeData(t, env, &listed)
	if len(listed.Sessions) != 1 || listed.Sessions[0].UnreadCount != 1 {
		t.Fatalf("unexpected session list %+v", listed.Sessions)
	}

	code, env = s.adminAction(s.adminToken, sessionForm("accept_chat", sessionID))
	if code != nethttp.StatusOK || !env.Success {
		t.Fatalf("accept: %d %+v", code, env)
	}

	code, env = s.adminAction(s.adminToken, sessionForm("accept_chat", sessionID))
	if code != nethttp.StatusConflict || env.Success || env.Code != response.CodeInvalidState {
		t.Fatalf("second accept: %d %+v", code, env)
	}

	form := sessionForm("send_message", sessionID)
	form.Set("message", "Hello")
	code, env = s.adminAction(s.adminToken, form)
	if code != nethttp.StatusOK || !env.Success {
		t.Fatalf("send message: %d %+v", code, env)
	}

	form = sessionForm("get_messages", sessionID)
	form.Set("since_message_id", "0")
	code, env = s.adminAction(s.adminToken, form)
	if code != nethttp.StatusOK {
		t.Fatalf("get messages: %d %+v", code, env)
	}
	var delta appsvc.FetchMessagesResult
	decodeData(t, env, &delta)
	if delta.Status != model.ChatStatusActive || len(delta.Messages) != 3 || delta.MarkedRead != 1 {
		t.Fatalf("unexpected delta %+v", delta)
	}
	texts := []string{delta.Messages[0].Message, delta.Messages[1].Message, delta.Messages[2].Message}
	want := []string{"Hi, my parcel is missing", "Support agent has joined the chat.", "Hello"}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("message %d = %q, want %q", i, texts[i], want[i])
		}
	}

	code, _, body := s.do(httptest.NewRequest(nethttp.MethodGet, fmt.Sprintf("/api/v1/chat/sessions/%d/messages?since_message_id=0", sessionID), nil), customer)
	if code != nethttp.StatusOK || !strings.Contains(body, "Hello") {
		t.Fatalf("customer poll: %d %s", code, body)
	}

	code, env = s.adminAction(s.adminToken, sessionForm("end_chat", sessionID))
	if code != nethttp.StatusOK {
		t.Fatalf("end chat: %d %+v", code, env)
	}

	form = sessionForm("send_message", sessionID)
	form.Set("message", "Are you still there?")
	code, env = s.adminAction(s.adminToken, form)
	if code != nethttp.StatusConflict || env.Code != response.CodeInvalidState {
		t.Fatalf("send after end: %d %+v", code, env)
	}
}

func TestAdminChatRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)
	customer := s.registerCustomer("shopper")
	sessionID := s.startChat(customer)
	if _, err := s.chat.AcceptChat(context.Background(), sessionID, 1); err != nil {
		t.Fatalf("accept chat: %v", err)
	}

	tooLong := sessionForm("send_message", sessionID)
	tooLong.Set("message", strings.Repeat("x", 501))
	badCursor := sessionForm("get_messages", sessionID)
	badCursor.Set("since_message_id", "abc")

	cases := []struct {
		name     string
		form     url.Values
		status   int
		respCode int
	}{
		{"unknown action", sessionForm("reopen_chat", sessionID), nethttp.StatusBadRequest, response.CodeBadRequest},
		{"missing session", url.Values{"action": {"accept_chat"}}, nethttp.StatusBadRequest, response.CodeBadRequest},
		{"message too long", tooLong, nethttp.StatusBadRequest, response.CodeBadRequest},
		{"bad cursor", badCursor, nethttp.StatusBadRequest, response.CodeBadRequest},
		{"unknown session", sessionForm("get_messages", 999), nethttp.StatusNotFound, response.CodeSessionNotFound},
	}
	for _, tc := range cases {
		code, env := s.adminAction(s.adminToken, tc.form)
		if code != tc.status || env.Success || env.Code != tc.respCode {
			t.Errorf("%s: got %d %+v", tc.name, code, env)
		}
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	customer := s.registerCustomer("shopper")

	code, env := s.adminAction("", url.Values{"action": {"list_sessions"}})
	if code != nethttp.StatusUnauthorized || env.Code != response.CodeUnauthorized {
		t.Fatalf("anonymous: %d %+v", code, env)
	}
	code, env = s.adminAction(customer, url.Values{"action": {"list_sessions"}})
	if code != nethttp.StatusForbidden || env.Code != response.CodeForbidden {
		t.Fatalf("customer: %d %+v", code, env)
	}
	code, env = s.postJSON("/api/v1/chat/sessions", s.adminToken, map[string]string{})
	if code != nethttp.StatusForbidden {
		t.Fatalf("admin on customer route: %d %+v", code, env)
	}
}

func TestCustomerCannotReadOtherSessions(t *testing.T) {
	s := newTestServer(t)
	owner := s.registerCustomer("owner")
	other := s.registerCustomer("other")
	sessionID := s.startChat(owner)

	req := httptest.NewRequest(nethttp.MethodGet, fmt.Sprintf("/api/v1/chat/sessions/%d/messages", sessionID), nil)
	code, env, _ := s.do(req, other)
	if code != nethttp.StatusNotFound || env.Code != response.CodeSessionNotFound {
		t.Fatalf("foreign session: %d %+v", code, env)
	}
}

func TestStreamStopsAtTerminalStatus(t *testing.T) {
	s := newTestServer(t)
	customer := s.registerCustomer("shopper")
	sessionID := s.startChat(customer)
	ctx := context.Background()
	if _, err := s.chat.AcceptChat(ctx, sessionID, 1); err != nil {
		t.Fatalf("accept chat: %v", err)
	}
	if _, err := s.chat.EndChat(ctx, sessionID, 1); err != nil {
		t.Fatalf("end chat: %v", err)
	}

	req := httptest.NewRequest(nethttp.MethodGet, fmt.Sprintf("/api/v1/admin/chat/sessions/%d/stream?since_message_id=0", sessionID), nil)
	code, _, body := s.do(req, s.adminToken)
	if code != nethttp.StatusOK {
		t.Fatalf("stream: %d %s", code, body)
	}
	for _, want := range []string{"event:messages", "Chat session ended by support agent.", "event:status", `"status":"closed"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream body missing %q:\n%s", want, body)
		}
	}

	missing := httptest.NewRequest(nethttp.MethodGet, "/api/v1/admin/chat/sessions/999/stream", nil)
	code, env, _ := s.do(missing, s.adminToken)
	if code != nethttp.StatusNotFound || env.Code != response.CodeSessionNotFound {
		t.Fatalf("missing session stream: %d %+v", code, env)
	}
}
