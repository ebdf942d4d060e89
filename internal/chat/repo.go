package chat

import (
	"context"
	"errors"
	"time"

	"github.com/studybuddy/backend/internal/common"
	"github.com/studybuddy/backend/internal/match"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).First(&c, "id = ?", chatID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) GetChatByPair(ctx context.Context, pair match.PairKey) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).
		Where("user_one_id = ? AND user_two_id = ?", pair.UserOneID, pair.UserTwoID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

const promoteAttempts = 3

// CreateChatOrGetExisting returns the chat for the pair, creating it if
// none exists. Concurrent callers for the same pair are resolved by the
// unique pair index: the loser's insert conflicts and the next attempt
// fetches the winner's row. "Already exists" is the expected common path,
// never an error.
func (r *Repo) CreateChatOrGetExisting(ctx context.Context, pair match.PairKey) (*Chat, bool, error) {
	var lastErr error
	for i := 0; i < promoteAttempts; i++ {
		existing, err := r.GetChatByPair(ctx, pair)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			lastErr = err
			continue
		}

		id, err := common.NewULID()
		if err != nil {
			return nil, false, err
		}
		c := &Chat{ID: id, UserOneID: pair.UserOneID, UserTwoID: pair.UserTwoID}
		if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
			// Most likely we lost the insert race; the next iteration
			// fetches the existing row.
			lastErr = err
			continue
		}
		return c, true, nil
	}
	return nil, false, lastErr
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessagesAsc returns every message of the chat in ascending
// (sent_at, id) order. The id tie-break keeps the order stable across
// calls when timestamps collide.
func (r *Repo) ListMessagesAsc(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("sent_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) LatestMessage(ctx context.Context, chatID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("sent_at DESC, id DESC").
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) ChatsForUser(ctx context.Context, userID uint64) ([]Chat, error) {
	var chats []Chat
	if err := r.db.WithContext(ctx).
		Where("user_one_id = ? OR user_two_id = ?", userID, userID).
		Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

// MarkUnreadAsRead stamps readAt onto every message in the chat that the
// reader did not send and that is still unread, and returns that batch.
// The selection and the guarded update run in one transaction; the
// read_at IS NULL predicate keeps the stamp at-most-once against a
// concurrent marker, and a message inserted after the selection is not
// part of the id set so it stays untouched.
func (r *Repo) MarkUnreadAsRead(ctx context.Context, chatID string, readerID uint64, readAt time.Time) ([]Message, error) {
	var marked []Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unread []Message
		if err := tx.
			Where("chat_id = ? AND sender_id <> ? AND read_at IS NULL", chatID, readerID).
			Order("id ASC").
			Find(&unread).Error; err != nil {
			return err
		}
		if len(unread) == 0 {
			return nil
		}

		ids := make([]uint64, len(unread))
		for i, m := range unread {
			ids[i] = m.ID
		}

		res := tx.Model(&Message{}).
			Where("id IN ? AND read_at IS NULL", ids).
			Update("read_at", readAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		ts := readAt
		for i := range unread {
			unread[i].ReadAt = &ts
		}
		marked = unread
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}
