package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	appsvc "shopadmin-livechat/internal/app"
	"shopadmin-livechat/internal/bootstrap"
	"shopadmin-livechat/internal/model"
	"shopadmin-livechat/internal/transport/http/handler"
	"shopadmin-livechat/internal/transport/http/middleware"
)

// Services is what the API routes need from the application layer.
type Services struct {
	Auth           *appsvc.AuthService
	Chat           *appsvc.ChatService
	CustomerChat   *appsvc.CustomerChatService
	JWTSecret      string
	StreamInterval time.Duration
	Logger         *slog.Logger
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	RegisterAPI(router, Services{
		Auth:           app.Auth,
		Chat:           app.Chat,
		CustomerChat:   app.CustomerChat,
		JWTSecret:      app.Config.Auth.JWTSecret,
		StreamInterval: app.Config.Chat.StreamPollInterval(),
		Logger:         app.Logger,
	})
	return router
}

// RegisterAPI mounts the /api/v1 routes on router.
func RegisterAPI(router *gin.Engine, svc Services) {
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authHandler := handler.NewAuthHandler(svc.Auth, logger)
	adminChatHandler := handler.NewAdminChatHandler(svc.Chat, logger, svc.StreamInterval)
	customerChatHandler := handler.NewCustomerChatHandler(svc.CustomerChat, logger)
	authRequired := middleware.AuthJWT(svc.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authRequired, authHandler.Me)

	adminGroup := v1.Group("/admin/chat")
	adminGroup.Use(authRequired, middleware.RequireRole(model.RoleAdmin))
	adminGroup.POST("", adminChatHandler.Handle)
	adminGroup.GET("/sessions/:id/stream", adminChatHandler.Stream)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(authRequired, middleware.RequireRole(model.RoleCustomer))
	chatGroup.POST("/sessions", customerChatHandler.StartChat)
	chatGroup.POST("/sessions/:id/messages", customerChatHandler.PostMessage)
	chatGroup.GET("/sessions/:id/messages", customerChatHandler.FetchMessages)
}
