package chat

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/studybuddy/backend/internal/apperrors"
	"github.com/studybuddy/backend/internal/match"
	"github.com/studybuddy/backend/internal/users"
	"gorm.io/gorm"
)

// Presence reports whether a user currently holds a live connection.
type Presence interface {
	IsOnline(ctx context.Context, userID uint64) (bool, error)
}

type Service struct {
	repo        *Repo
	users       users.Directory
	broadcaster Broadcaster
	events      MatchEventPublisher // nil disables match notifications
	presence    Presence            // nil disables online flags
}

func NewService(repo *Repo, dir users.Directory, b Broadcaster, events MatchEventPublisher, presence Presence) *Service {
	if b == nil {
		b = NopBroadcaster{}
	}
	return &Service{repo: repo, users: dir, broadcaster: b, events: events, presence: presence}
}

// PromoteMatched creates the chat for a mutually accepted pair if none
// exists yet. Satisfies match.Promoter; redundant invocations return the
// existing chat and do nothing else.
func (s *Service) PromoteMatched(ctx context.Context, pair match.PairKey) error {
	c, created, err := s.repo.CreateChatOrGetExisting(ctx, pair)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	log.Printf("chat created chat_id=%s user_one=%d user_two=%d", c.ID, c.UserOneID, c.UserTwoID)

	if s.events != nil {
		ev := MatchCreatedEvent{ChatID: c.ID, UserOneID: c.UserOneID, UserTwoID: c.UserTwoID}
		if err := s.events.PublishMatchCreated(ctx, ev); err != nil {
			// Notification is best-effort; the chat itself is durable.
			log.Printf("publish match event failed chat_id=%s err=%v", c.ID, err)
		}
	}
	return nil
}

// loadChatForParticipant is the shared guard: the chat must exist and the
// caller must be one of its two participants.
func (s *Service) loadChatForParticipant(ctx context.Context, chatID string, userID uint64) (*Chat, error) {
	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, apperrors.ErrForbidden
	}
	return c, nil
}

// SendMessage persists the message with a server-assigned timestamp and
// then hands it to the broadcaster. Returning after the insert, not after
// delivery: persistence is the durable source of truth and live delivery
// is best-effort on top of it.
func (s *Service) SendMessage(ctx context.Context, chatID string, senderID uint64, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.ErrValidation
	}

	c, err := s.loadChatForParticipant(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ChatID:   c.ID,
		SenderID: senderID,
		Content:  content,
		SentAt:   time.Now(),
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	senderName, err := s.users.DisplayName(ctx, senderID)
	if err != nil {
		senderName = ""
	}
	s.broadcaster.BroadcastToUsers(
		[]uint64{c.UserOneID, c.UserTwoID},
		Event{
			Channel: ChatChannel(c.ID),
			Type:    EventMessage,
			Payload: MessageView{Message: *msg, SenderName: senderName},
		},
	)
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, chatID string, userID uint64) ([]Message, error) {
	if _, err := s.loadChatForParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListMessagesAsc(ctx, chatID)
}

// ChatSummary annotates a chat with its most recent activity for listing.
type ChatSummary struct {
	ChatID             string    `json:"chat_id"`
	OtherUserID        uint64    `json:"other_user_id"`
	OtherUserName      string    `json:"other_user_name"`
	OtherUserOnline    bool      `json:"other_user_online"`
	LastMessageContent string    `json:"last_message_content"`
	LastMessageAt      time.Time `json:"last_message_at"`
	CreatedAt          time.Time `json:"created_at"`
}

// ListChats returns every chat the user participates in, most recently
// active first. A chat with no messages yet sorts by its creation time so
// fresh matches surface deterministically.
func (s *Service) ListChats(ctx context.Context, userID uint64) ([]ChatSummary, error) {
	chats, err := s.repo.ChatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		otherID := c.OtherParticipant(userID)

		name, err := s.users.DisplayName(ctx, otherID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				name = "Unknown User"
			} else {
				return nil, err
			}
		}

		summary := ChatSummary{
			ChatID:        c.ID,
			OtherUserID:   otherID,
			OtherUserName: name,
			LastMessageAt: c.CreatedAt,
			CreatedAt:     c.CreatedAt,
		}

		last, err := s.repo.LatestMessage(ctx, c.ID)
		if err == nil {
			summary.LastMessageContent = last.Content
			summary.LastMessageAt = last.SentAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		if s.presence != nil {
			online, err := s.presence.IsOnline(ctx, otherID)
			if err == nil {
				summary.OtherUserOnline = online
			}
		}

		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ChatID < out[j].ChatID
	})
	return out, nil
}

// MarkRead stamps every unread message from the other participant and
// notifies each affected sender on their private channel. Calling it with
// nothing unread is a no-op, not an error.
func (s *Service) MarkRead(ctx context.Context, chatID string, readerID uint64) error {
	if _, err := s.loadChatForParticipant(ctx, chatID, readerID); err != nil {
		return err
	}

	readAt := time.Now()
	marked, err := s.repo.MarkUnreadAsRead(ctx, chatID, readerID, readAt)
	if err != nil {
		return err
	}
	if len(marked) == 0 {
		return nil
	}

	// One receipt per distinct sender, addressed to that sender only.
	bySender := make(map[uint64][]uint64)
	for _, m := range marked {
		bySender[m.SenderID] = append(bySender[m.SenderID], m.ID)
	}
	for senderID, ids := range bySender {
		s.broadcaster.SendToUser(senderID, Event{
			Channel: UserChannel(senderID),
			Type:    EventReadReceipt,
			Payload: ReadReceipt{
				ChatID:     chatID,
				MessageIDs: ids,
				ReaderID:   readerID,
				ReadAt:     readAt,
			},
		})
	}
	return nil
}
