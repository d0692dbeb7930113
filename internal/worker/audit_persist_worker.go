package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"shopadmin-livechat/internal/app"
	"shopadmin-livechat/internal/model"
	"shopadmin-livechat/internal/platform/rabbitmq"
)

var errMalformedEvent = errors.New("malformed chat event")

// AuditStore is the persistence side of the audit consumer.
type AuditStore interface {
	CreateIfAbsent(ctx context.Context, entry *model.AuditLog) (bool, error)
}

// AuditPersistWorker drains the chat event queue into the audit log table.
type AuditPersistWorker struct {
	conn       *amqp.Connection
	store      AuditStore
	queueName  string
	logger     *slog.Logger
	retryDelay time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAuditPersistWorker(conn *amqp.Connection, store AuditStore, queueName string, logger *slog.Logger) *AuditPersistWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditPersistWorker{
		conn:       conn,
		store:      store,
		queueName:  queueName,
		logger:     logger,
		retryDelay: time.Second,
	}
}

func (w *AuditPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.settle(workerCtx, d)
			}
		}
	}()

	return nil
}

// settle persists one delivery and acknowledges it. Malformed events are
// dropped. Store failures go back on the queue after retryDelay; a replayed
// event is absorbed by the unique event_id.
func (w *AuditPersistWorker) settle(ctx context.Context, d amqp.Delivery) {
	err := w.handle(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errMalformedEvent):
		w.logger.Warn("dropping malformed chat event", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
	default:
		w.logger.Error("persist chat event failed, requeueing", "message_id", d.MessageId, "error", err)
		if w.retryDelay > 0 {
			timer := time.NewTimer(w.retryDelay)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
			timer.Stop()
		}
		_ = d.Nack(false, true)
	}
}

func (w *AuditPersistWorker) handle(ctx context.Context, body []byte) error {
	entry, err := decodeChatEvent(body)
	if err != nil {
		return err
	}
	created, err := w.store.CreateIfAbsent(ctx, entry)
	if err != nil {
		return err
	}
	if !created {
		w.logger.Debug("duplicate chat event skipped", "event_id", entry.EventID)
	}
	return nil
}

func decodeChatEvent(body []byte) (*model.AuditLog, error) {
	var event app.ChatEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if strings.TrimSpace(event.ID) == "" || event.SessionID == 0 || !strings.HasPrefix(event.Action, "chat.") {
		return nil, errMalformedEvent
	}
	return &model.AuditLog{
		EventID:    event.ID,
		Action:     event.Action,
		SessionID:  event.SessionID,
		AdminID:    event.AdminID,
		OccurredAt: event.OccurredAt,
	}, nil
}

func (w *AuditPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
