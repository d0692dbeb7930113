package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"shopadmin-livechat/internal/model"
)

const (
	sessionListKey        = "chat:sessions:list"
	sessionListVersionKey = "chat:sessions:list:version"
)

var errStaleList = errors.New("session list version moved")

// SessionListCache keeps the admin session list in Redis. Invalidate drops the
// entry and bumps a version counter; a reader records the version before it
// queries and SetSessions refuses the write if the counter has moved since.
type SessionListCache struct {
	client  *redisv9.Client
	listTTL time.Duration
}

func NewSessionListCache(client *redisv9.Client, listTTL time.Duration) *SessionListCache {
	if listTTL <= 0 {
		listTTL = 3 * time.Second
	}
	return &SessionListCache{
		client:  client,
		listTTL: listTTL,
	}
}

func (c *SessionListCache) GetSessions(ctx context.Context) ([]model.ChatSessionSummary, bool, error) {
	raw, err := c.client.Get(ctx, sessionListKey).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get session list failed: %w", err)
	}

	var sessions []model.ChatSessionSummary
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached session list failed: %w", err)
	}
	return sessions, true, nil
}

// Version returns the current invalidation count, zero before the first write.
func (c *SessionListCache) Version(ctx context.Context) (int64, error) {
	v, err := readVersion(ctx, c.client)
	if err != nil {
		return 0, fmt.Errorf("redis get session list version failed: %w", err)
	}
	return v, nil
}

// SetSessions stores the list if no Invalidate ran since version was read.
// It reports false when the write was refused.
func (c *SessionListCache) SetSessions(ctx context.Context, sessions []model.ChatSessionSummary, version int64) (bool, error) {
	payload, err := json.Marshal(sessions)
	if err != nil {
		return false, fmt.Errorf("marshal session list cache failed: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redisv9.Tx) error {
		current, err := readVersion(ctx, tx)
		if err != nil {
			return err
		}
		if current != version {
			return errStaleList
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
			pipe.Set(ctx, sessionListKey, payload, c.listTTL)
			return nil
		})
		return err
	}, sessionListVersionKey)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStaleList), errors.Is(err, redisv9.TxFailedErr):
		return false, nil
	}
	return false, fmt.Errorf("redis set session list failed: %w", err)
}

func (c *SessionListCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Incr(ctx, sessionListVersionKey)
		pipe.Del(ctx, sessionListKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate session list failed: %w", err)
	}
	return nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redisv9.StringCmd
}

func readVersion(ctx context.Context, r stringGetter) (int64, error) {
	v, err := r.Get(ctx, sessionListVersionKey).Int64()
	if errors.Is(err, redisv9.Nil) {
		return 0, nil
	}
	return v, err
}
