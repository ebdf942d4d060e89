package chat

import (
	"time"

	"github.com/studybuddy/backend/internal/match"
)

// Chat is the conversation shared by exactly the two users of a matched
// pair. The composite unique index over the canonical pair columns is what
// makes promotion at-most-once: the existence check and the create collapse
// into a single insert that either wins or conflicts.
type Chat struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID

	UserOneID uint64 `gorm:"not null;uniqueIndex:uniq_chat_pair,priority:1" json:"user_one_id"`
	UserTwoID uint64 `gorm:"not null;uniqueIndex:uniq_chat_pair,priority:2" json:"user_two_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (Chat) TableName() string { return "chats" }

func (c *Chat) Pair() match.PairKey {
	return match.PairKey{UserOneID: c.UserOneID, UserTwoID: c.UserTwoID}
}

func (c *Chat) HasParticipant(userID uint64) bool {
	return userID == c.UserOneID || userID == c.UserTwoID
}

func (c *Chat) OtherParticipant(userID uint64) uint64 {
	if userID == c.UserOneID {
		return c.UserTwoID
	}
	return c.UserOneID
}

// Message belongs to exactly one chat. SentAt is assigned by the server at
// persistence time; the autoincrement id breaks ties between messages that
// share a timestamp, giving listings a stable total order. ReadAt is set at
// most once and never cleared.
type Message struct {
	ID       uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID   string     `gorm:"size:26;not null;index:idx_messages_chat_sent,priority:1" json:"chat_id"`
	SenderID uint64     `gorm:"not null;index" json:"sender_id"`
	Content  string     `gorm:"type:text;not null" json:"content"`
	SentAt   time.Time  `gorm:"not null;index:idx_messages_chat_sent,priority:2" json:"sent_at"`
	ReadAt   *time.Time `json:"read_at"`
}

func (Message) TableName() string { return "messages" }
