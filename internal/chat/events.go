package chat

import (
	"context"
	"fmt"
	"time"
)

const (
	EventMessage     = "message"
	EventReadReceipt = "read_receipt"
)

// Event is the envelope pushed to live subscribers. Channel names follow
// "chat.<chatID>" for new-message fan-out and "user.<userID>" for private
// delivery; clients route on the name.
type Event struct {
	Channel string `json:"channel"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func ChatChannel(chatID string) string { return "chat." + chatID }
func UserChannel(userID uint64) string { return fmt.Sprintf("user.%d", userID) }

// MessageView is the message descriptor as delivered to clients.
type MessageView struct {
	Message
	SenderName string `json:"sender_name"`
}

// ReadReceipt tells a sender which of their messages the other participant
// has read.
type ReadReceipt struct {
	ChatID     string    `json:"chat_id"`
	MessageIDs []uint64  `json:"message_ids"`
	ReaderID   uint64    `json:"reader_id"`
	ReadAt     time.Time `json:"read_at"`
}

// Broadcaster delivers events to currently connected subscribers.
// Delivery is fire-and-forget: the persisted message is the source of
// truth and a disconnected subscriber recovers via listing endpoints.
type Broadcaster interface {
	BroadcastToUsers(userIDs []uint64, event Event)
	SendToUser(userID uint64, event Event)
}

// NopBroadcaster is used where no live delivery is wired (worker, tests).
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastToUsers([]uint64, Event) {}
func (NopBroadcaster) SendToUser(uint64, Event)         {}

// MatchCreatedEvent is handed to the notification pipeline when promotion
// creates a brand-new chat.
type MatchCreatedEvent struct {
	ChatID    string `json:"chat_id"`
	UserOneID uint64 `json:"user_one_id"`
	UserTwoID uint64 `json:"user_two_id"`
}

type MatchEventPublisher interface {
	PublishMatchCreated(ctx context.Context, ev MatchCreatedEvent) error
}
