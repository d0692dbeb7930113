package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"

	"shopadmin-livechat/internal/model"
)

func newTestCache(t *testing.T) (*SessionListCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionListCache(client, 5*time.Second), srv
}

func TestSessionListCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, hit, err := c.GetSessions(ctx); err != nil || hit {
		t.Fatalf("expected miss on empty cache, hit=%v err=%v", hit, err)
	}

	want := []model.ChatSessionSummary{
		{ChatSession: model.ChatSession{ID: 3, UserID: 42, Status: model.ChatStatusPending}, UnreadCount: 2},
	}
	if ok, err := c.SetSessions(ctx, want, 0); err != nil || !ok {
		t.Fatalf("set: ok=%v err=%v", ok, err)
	}
	got, hit, err := c.GetSessions(ctx)
	if err != nil || !hit {
		t.Fatalf("expected hit, hit=%v err=%v", hit, err)
	}
	if len(got) != 1 || got[0].ID != 3 || got[0].UnreadCount != 2 || got[0].Status != model.ChatStatusPending {
		t.Fatalf("unexpected cached list: %+v", got)
	}
}

func TestSessionListCacheRefusesListReadBeforeInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.Version(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	stale := []model.ChatSessionSummary{{ChatSession: model.ChatSession{ID: 1, Status: model.ChatStatusPending}}}
	ok, err := c.SetSessions(ctx, stale, before)
	if err != nil || ok {
		t.Fatalf("list from before the invalidate must be refused: ok=%v err=%v", ok, err)
	}
	if _, hit, _ := c.GetSessions(ctx); hit {
		t.Fatal("refused list must not be readable")
	}

	after, err := c.Version(ctx)
	if err != nil || after != before+1 {
		t.Fatalf("version after invalidate = %d (err %v), want %d", after, err, before+1)
	}
	if ok, err := c.SetSessions(ctx, stale, after); err != nil || !ok {
		t.Fatalf("set with current version: ok=%v err=%v", ok, err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, hit, _ := c.GetSessions(ctx); hit {
		t.Fatal("list should be gone after invalidate")
	}
}

func TestSessionListCacheEntryExpires(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	if ok, err := c.SetSessions(ctx, []model.ChatSessionSummary{}, 0); err != nil || !ok {
		t.Fatalf("set: ok=%v err=%v", ok, err)
	}
	srv.FastForward(6 * time.Second)
	if _, hit, _ := c.GetSessions(ctx); hit {
		t.Fatal("entry should expire after ttl")
	}
}
