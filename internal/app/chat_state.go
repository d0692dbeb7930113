package app

import "shopadmin-livechat/internal/model"

type chatEvent string

const (
	eventAccept  chatEvent = "accept"
	eventDecline chatEvent = "decline"
	eventEnd     chatEvent = "end"
	eventExpire  chatEvent = "expire"
)

const (
	msgAgentJoined     = "Support agent has joined the chat."
	msgRequestDeclined = "Chat request was declined. Please try again later."
	msgSessionEnded    = "Chat session ended by support agent."
	msgRequestExpired  = "Chat request expired before an agent was available."
)

type chatTransition struct {
	from          model.ChatStatus
	to            model.ChatStatus
	systemMessage string
	auditAction   string
}

var chatTransitions = map[chatEvent]chatTransition{
	eventAccept:  {from: model.ChatStatusPending, to: model.ChatStatusActive, systemMessage: msgAgentJoined, auditAction: AuditChatAccepted},
	eventDecline: {from: model.ChatStatusPending, to: model.ChatStatusDeclined, systemMessage: msgRequestDeclined, auditAction: AuditChatDeclined},
	eventEnd:     {from: model.ChatStatusActive, to: model.ChatStatusClosed, systemMessage: msgSessionEnded, auditAction: AuditChatClosed},
	eventExpire:  {from: model.ChatStatusPending, to: model.ChatStatusDeclined, systemMessage: msgRequestExpired, auditAction: AuditChatExpired},
}

// transitionFor returns the transition event triggers from current, or
// ErrInvalidState when the event is not legal there.
func transitionFor(current model.ChatStatus, event chatEvent) (chatTransition, error) {
	tr, ok := chatTransitions[event]
	if !ok || tr.from != current {
		return chatTransition{}, ErrInvalidState
	}
	return tr, nil
}
