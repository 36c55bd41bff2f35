package chatapp

import "time"

// EventType enumerates the chat events the interceptor fans out to room
// members.
type EventType string

const (
	EventTypeMessage    EventType = "message"
	EventTypeModeration EventType = "moderation"
	EventTypeReport     EventType = "report"
)

// ModerationAction captures the moderation operations available to chat
// participants.
type ModerationAction string

const (
	ModerationActionTimeout       ModerationAction = "timeout"
	ModerationActionRemoveTimeout ModerationAction = "remove_timeout"
	ModerationActionBan           ModerationAction = "ban"
	ModerationActionUnban         ModerationAction = "unban"
)

// Event is the payload broadcast to every member of a channel's room.
type Event struct {
	Type       EventType        `json:"type"`
	Message    *MessageEvent    `json:"message,omitempty"`
	Moderation *ModerationEvent `json:"moderation,omitempty"`
	Report     *ReportEvent     `json:"report,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// MessageEvent is a single chat message authored by a connected user.
type MessageEvent struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ModerationEvent describes a moderation action taken against a target
// user within a channel.
type ModerationEvent struct {
	Action    ModerationAction `json:"action"`
	ChannelID string           `json:"channelId"`
	ActorID   string           `json:"actorId"`
	TargetID  string           `json:"targetId"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// ReportEvent is a viewer report against another participant.
type ReportEvent struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channelId"`
	ReporterID string    `json:"reporterId"`
	TargetID   string    `json:"targetId"`
	Reason     string    `json:"reason"`
	MessageID  string    `json:"messageId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
