package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	appsvc "shopadmin-livechat/internal/app"
	"shopadmin-livechat/internal/cache"
	"shopadmin-livechat/internal/config"
	"shopadmin-livechat/internal/model"
	mysqlClient "shopadmin-livechat/internal/platform/mysql"
	rabbitmqClient "shopadmin-livechat/internal/platform/rabbitmq"
	redisClient "shopadmin-livechat/internal/platform/redis"
	"shopadmin-livechat/internal/repository"
	"shopadmin-livechat/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Auth         *appsvc.AuthService
	Chat         *appsvc.ChatService
	CustomerChat *appsvc.CustomerChatService

	AuditWorker  *worker.AuditPersistWorker
	ExpiryWorker *worker.PendingExpiryWorker

	StartedAt time.Time
}

// New connects every backing service, migrates the schema and starts the
// background workers. On error, whatever was opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.MySQL, err = mysqlClient.New(ctx, cfg.MySQLDSN(), cfg.App.Env == "dev")
	if err != nil {
		return nil, err
	}
	if err := a.MySQL.AutoMigrate(&model.User{}, &model.ChatSession{}, &model.ChatMessage{}, &model.AuditLog{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	a.Redis, err = redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.AuditQueue)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(a.MySQL)
	sessionRepo := repository.NewChatSessionRepository(a.MySQL)
	messageRepo := repository.NewChatMessageRepository(a.MySQL)
	auditRepo := repository.NewAuditLogRepository(a.MySQL)

	listCache := cache.NewSessionListCache(a.Redis, time.Duration(cfg.Redis.SessionListTTLSeconds)*time.Second)
	publisher := rabbitmqClient.NewChatEventPublisher(a.MQConn, cfg.RabbitMQ.AuditQueue)

	a.Auth = appsvc.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	a.Chat = appsvc.NewChatService(sessionRepo, messageRepo, listCache, publisher, logger.With("component", "chat"))
	a.CustomerChat = appsvc.NewCustomerChatService(
		sessionRepo,
		messageRepo,
		listCache,
		logger.With("component", "customer_chat"),
		cfg.Chat.CustomerMaxMessageLength,
	)

	a.AuditWorker = worker.NewAuditPersistWorker(a.MQConn, auditRepo, cfg.RabbitMQ.AuditQueue, logger.With("component", "audit_worker"))
	if err := a.AuditWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start audit worker failed: %w", err)
	}

	if timeout := cfg.Chat.PendingTimeout(); timeout > 0 {
		a.ExpiryWorker = worker.NewPendingExpiryWorker(
			a.Chat,
			timeout,
			cfg.Chat.ExpiryAdminID,
			cfg.Chat.ExpirySweepInterval(),
			logger.With("component", "expiry_worker"),
		)
		a.ExpiryWorker.Start(ctx)
		logger.Info("pending chat expiry enabled", "timeout", timeout, "admin_id", cfg.Chat.ExpiryAdminID)
	}

	return a, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.ExpiryWorker != nil {
		a.ExpiryWorker.Close()
	}
	if a.AuditWorker != nil {
		a.AuditWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
