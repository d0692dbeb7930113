package repository

import (
	"context"
	"testing"
	"time"

	"shopadmin-livechat/internal/model"
	"shopadmin-livechat/internal/testutil"
)

func TestListSinceAndMarkRead(t *testing.T) {
	ctx := context.Background()
	repo := NewChatMessageRepository(testutil.OpenDB(t))
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	senders := []model.SenderType{model.SenderUser, model.SenderSystem, model.SenderUser, model.SenderAdmin, model.SenderUser}
	ids := make([]uint, 0, len(senders))
	for i, sender := range senders {
		m := &model.ChatMessage{
			SessionID:   1,
			SenderType:  sender,
			Message:     "m",
			MessageType: model.MessageTypeNormal,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
		ids = append(ids, m.ID)
	}
	other := &model.ChatMessage{SessionID: 2, SenderType: model.SenderUser, Message: "x", MessageType: model.MessageTypeNormal, CreatedAt: base}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("create message: %v", err)
	}

	list, err := repo.ListSince(ctx, 1, ids[1])
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(list) != 3 || list[0].ID != ids[2] || list[2].ID != ids[4] {
		t.Fatalf("unexpected delta %+v", list)
	}

	marked, err := repo.MarkRead(ctx, 1, ids[2], model.SenderUser)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if marked != 2 {
		t.Fatalf("marked %d, want 2 user messages up to the cursor", marked)
	}

	marked, err = repo.MarkRead(ctx, 1, ids[4], model.SenderUser)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if marked != 1 {
		t.Fatalf("marked %d, want only the remaining user message", marked)
	}

	all, err := repo.ListSince(ctx, 1, 0)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	for _, m := range all {
		if (m.SenderType == model.SenderUser) != m.IsRead {
			t.Fatalf("message %d from %s has is_read=%v", m.ID, m.SenderType, m.IsRead)
		}
	}

	untouched, err := repo.ListSince(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(untouched) != 1 || untouched[0].IsRead {
		t.Fatalf("other session must not be affected: %+v", untouched)
	}
}
