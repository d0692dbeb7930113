package app

import (
	"context"
	"errors"

	"shopadmin-livechat/internal/model"
)

// fetchDelta loads the session's messages after sinceID, then marks the
// delivered messages from readSenders as read. The message list is taken
// before marking so nothing is flagged read that the caller has not received.
func fetchDelta(
	ctx context.Context,
	sessions SessionStore,
	messages MessageStore,
	sessionID, sinceID uint,
	onRead func(context.Context),
	readSenders ...model.SenderType,
) (*FetchMessagesResult, error) {
	session, err := sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, storeErr("load session", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return deliver(ctx, session, messages, sinceID, onRead, readSenders...)
}

func deliver(
	ctx context.Context,
	session *model.ChatSession,
	messages MessageStore,
	sinceID uint,
	onRead func(context.Context),
	readSenders ...model.SenderType,
) (*FetchMessagesResult, error) {
	list, err := messages.ListSince(ctx, session.ID, sinceID)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	if list == nil {
		list = []model.ChatMessage{}
	}

	cursor := sinceID
	for _, m := range list {
		if m.ID > cursor {
			cursor = m.ID
		}
	}

	var marked int64
	if cursor > 0 {
		marked, err = messages.MarkRead(ctx, session.ID, cursor, readSenders...)
		if err != nil {
			return nil, storeErr("mark messages read", err)
		}
		if marked > 0 {
			for i := range list {
				for _, sender := range readSenders {
					if list[i].SenderType == sender {
						list[i].IsRead = true
					}
				}
			}
			if onRead != nil {
				onRead(ctx)
			}
		}
	}

	return &FetchMessagesResult{
		SessionID:     session.ID,
		Status:        session.Status,
		Messages:      list,
		LastMessageID: cursor,
		MarkedRead:    marked,
	}, nil
}

// appendGuarded stores message only while its session is in one of allowed.
// A refused append is re-read to tell a missing session from a wrong status.
func appendGuarded(ctx context.Context, sessions SessionStore, message *model.ChatMessage, allowed ...model.ChatStatus) error {
	ok, err := sessions.AppendMessage(ctx, message, allowed...)
	if err != nil {
		return storeErr("append message", err)
	}
	if ok {
		return nil
	}

	current, err := sessions.GetByID(ctx, message.SessionID)
	if err != nil {
		return storeErr("reload session", err)
	}
	if current == nil {
		return ErrSessionNotFound
	}
	return ErrInvalidState
}

func isRaceLoss(err error) bool {
	return errors.Is(err, ErrStateConflict) || errors.Is(err, ErrInvalidState)
}
