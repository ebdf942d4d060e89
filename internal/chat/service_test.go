package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/studybuddy/backend/internal/apperrors"
	"github.com/studybuddy/backend/internal/match"
	"github.com/studybuddy/backend/internal/models"
	"github.com/studybuddy/backend/internal/users"
	"gorm.io/gorm"
)

type recordingBroadcaster struct {
	mu        sync.Mutex
	broadcast []Event
	direct    map[uint64][]Event
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{direct: make(map[uint64][]Event)}
}

func (b *recordingBroadcaster) BroadcastToUsers(userIDs []uint64, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = userIDs
	b.broadcast = append(b.broadcast, event)
}

func (b *recordingBroadcaster) SendToUser(userID uint64, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.direct[userID] = append(b.direct[userID], event)
}

func (b *recordingBroadcaster) directTo(userID uint64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.direct[userID]...)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &match.Match{}, &Chat{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, ids ...uint64) {
	t.Helper()
	for _, id := range ids {
		u := models.User{
			ID:       id,
			Email:    fmt.Sprintf("user%d@campus.edu", id),
			Username: fmt.Sprintf("user%d", id),
			FullName: fmt.Sprintf("User %d", id),
		}
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("seed user %d: %v", id, err)
		}
	}
}

func newTestService(t *testing.T, db *gorm.DB) (*Service, *recordingBroadcaster) {
	t.Helper()
	b := newRecordingBroadcaster()
	svc := NewService(NewRepo(db), users.NewDBDirectory(db), b, nil, nil)
	return svc, b
}

func mustPair(t *testing.T, a, b uint64) match.PairKey {
	t.Helper()
	pair, err := match.NewPairKey(a, b)
	if err != nil {
		t.Fatalf("pair key: %v", err)
	}
	return pair
}

func TestPromoteMatched_Idempotent(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db, 7, 12)
	svc, _ := newTestService(t, db)
	ctx := context.Background()
	pair := mustPair(t, 7, 12)

	if err := svc.PromoteMatched(ctx, pair); err != nil {
		t.Fatalf("first promote: %v", err)
	}
	if err := svc.PromoteMatched(ctx, pair); err != nil {
		t.Fatalf("second promote: %v", err)
	}

	var cnt int64
	if err := db.Model(&Chat{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count chats: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected exactly one chat, got %d", cnt)
	}
}

func TestPromoteMatched_Concurrent(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db, 1, 2)
	svc, _ := newTestService(t, db)
	pair := mustPair(t, 1, 2)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.PromoteMatched(context.Background(), pair)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("promote %d: %v", i, err)
		}
	}

	var cnt int64
	if err := db.Model(&Chat{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count chats: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected exactly one chat after %d concurrent promotions, got %d", n, cnt)
	}
}

func TestSendMessage_PersistsAndBroadcasts(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db, 7, 12)
	svc, b := newTestService(t, db)
	ctx := context.Background()

	if err := svc.PromoteMatched(ctx, mustPair(t, 7, 12)); err != nil {
		t.Fatalf("promote: %v", err)
	}
	c, err := NewRepo(db).GetChatByPair(ctx, mustPair(t, 7, 12))
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}

	msg, err := svc.SendMessage(ctx, c.ID, 7, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID == 0 || msg.SentAt.IsZero() {
		t.Fatalf("expected server-assigned id and timestamp, got %+v", msg)
	}
	if msg.ReadAt != nil {
		t.Fatalf("new message must start unread")
	}

	if len(b.broadcast) != 1 {
		t.Fatalf("expected 1 broadcast event, got %d", len(b.broadcast))
	}
	ev := b.broadcast[0]
	if ev.Type != EventMessage || ev.Channel != ChatChannel(c.ID) {
		t.Fatalf("unexpected event envelope: %+v", ev)
	}
	view, ok := ev.Payload.(MessageView)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.Payload)
	}
	if view.Content != "hello" || view.SenderName != "User 7" {
		t.Fatalf("unexpected payload: %+v", view)
	}
}

func TestSendMessage_Guards(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db, 7, 12, 99)
	svc, b := newTestService(t, db)
	ctx := context.Background()

	if err := svc.PromoteMatched(ctx, mustPair(t, 7, 12)); err != nil {
		t.Fatalf("promote: %v", err)
	}
	c, err := NewRepo(db).GetChatByPair(ctx, mustPair(t, 7, 12))
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}

	if _, err := svc.SendMessage(ctx, "01HNOSUCHCHAT0000000000000", 7, "hi"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing chat: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, c.ID, 99, "hi"); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("outsider: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, c.ID, 7, "   "); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("blank content: expected ErrValidation, got %v", err)
	}

	var cnt int64
	if err := db.Model(&Message{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("rejected sends must persist nothing, found %d rows", cnt)
	}
	if len(b.broadcast) != 0 {
		t.Fatalf("rejected sends must not broadcast, got %d events", len(b.broadcast))
	}
}

func TestListMessages_StableOrderOnEqualTimestamps(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db, 1, 2)
	svc, _ := newTestService(t, db)
	ctx := context.Background()
	repo := NewRepo(db)

	if err := svc.PromoteMatched(ctx, mustPair(t, 1, 2)); err != nil {
		t.Fatalf("promote: %v", err)
	}
	c, err := repo.GetChatByPair(ctx, mustPair(t, 1, 2))
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		m := &Message{ChatID: c.ID, SenderID: 1, Content: fmt.Sprintf("m%d", i), SentAt: ts}
		if err := repo.InsertMessage(ctx, m); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	msgs, err := svc.ListMessages(ctx, c.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID <= msgs[i-1].ID {
			t.Fatalf("ids not ascending on equal timestamps: %d then %d", msgs[i-1].ID, msgs[i].ID)
		}
	}
}

func TestMarkRead_StampsAndNotifiesSenderOnce(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db, 7, 12)
	svc, b := newTestService(t, db)
	ctx := context.Background()

	if err := svc.PromoteMatched(ctx, mustPair(t, 7, 12)); err != nil {
		t.Fatalf("promote: %v", err)
	}
	c, err := NewRepo(db).GetChatByPair(ctx, mustPair(t, 7, 12))
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}

	first, err := svc.SendMessage(ctx, c.ID, 7, "hello")
	if err != nil {
		t.Fatalf("send 1: %v", err)
	}
	second, err := svc.SendMessage(ctx, c.ID, 7, "still there?")
	if err != nil {
		t.Fatalf("send 2: %v", err)
	}
	reply, err := svc.SendMessage(ctx, c.ID, 12, "yes")
	if err != nil {
		t.Fatalf("send reply: %v", err)
	}

	if err := svc.MarkRead(ctx, c.ID, 12); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	msgs, err := svc.ListMessages(ctx, c.ID, 12)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, m := range msgs {
		switch m.ID {
		case first.ID, second.ID:
			if m.ReadAt == nil {
				t.Fatalf("message %d should be read", m.ID)
			}
		case reply.ID:
			if m.ReadAt != nil {
				t.Fatalf("the reader's own message must stay untouched")
			}
		}
	}

	receipts := b.directTo(7)
	if len(receipts) != 1 {
		t.Fatalf("expected exactly one receipt to the sender, got %d", len(receipts))
	}
	ev := receipts[0]
	if ev.Type != EventReadReceipt || ev.Channel != UserChannel(7) {
		t.Fatalf("unexpected receipt envelope: %+v", ev)
	}
	rr, ok := ev.Payload.(ReadReceipt)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.Payload)
	}
	if rr.ReaderID != 12 || rr.ChatID != c.ID || len(rr.MessageIDs) != 2 {
		t.Fatalf("unexpected receipt: %+v", rr)
	}
	if got := b.directTo(12); len(got) != 0 {
		t.Fatalf("the reader must not receive a receipt, got %d", len(got))
	}

	// second pass has nothing unread left: no-op, no extra receipt
	if err := svc.MarkRead(ctx, c.ID, 12); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if got := b.directTo(7); len(got) != 1 {
		t.Fatalf("repeat marking must not emit receipts, got %d", len(got))
	}
}

func TestListChats_OrdersByActivity(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db, 1, 2, 3)
	svc, _ := newTestService(t, db)
	ctx := context.Background()
	repo := NewRepo(db)

	if err := svc.PromoteMatched(ctx, mustPair(t, 1, 2)); err != nil {
		t.Fatalf("promote 1-2: %v", err)
	}
	if err := svc.PromoteMatched(ctx, mustPair(t, 1, 3)); err != nil {
		t.Fatalf("promote 1-3: %v", err)
	}

	active, err := repo.GetChatByPair(ctx, mustPair(t, 1, 3))
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if _, err := svc.SendMessage(ctx, active.ID, 3, "ping"); err != nil {
		t.Fatalf("send: %v", err)
	}

	out, err := svc.ListChats(ctx, 1)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(out))
	}
	if out[0].ChatID != active.ID {
		t.Fatalf("expected the chat with messages first, got %+v", out)
	}
	if out[0].LastMessageContent != "ping" || out[0].OtherUserID != 3 {
		t.Fatalf("unexpected summary: %+v", out[0])
	}
	if out[1].LastMessageContent != "" {
		t.Fatalf("empty chat must have no last message, got %+v", out[1])
	}
}

// Full path: two users accept each other, a chat appears, a greeting is
// sent and read, and the sender alone gets the receipt.
func TestMutualAcceptThroughReadReceipt(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db, 7, 12)
	chatSvc, b := newTestService(t, db)
	matchSvc := match.NewService(match.NewRepo(db), users.NewDBDirectory(db), chatSvc)
	ctx := context.Background()

	if got, err := matchSvc.SubmitDecision(ctx, 7, 12, match.StatusAccepted); err != nil || got != match.OverallPending {
		t.Fatalf("first accept: status=%v err=%v", got, err)
	}
	if got, err := matchSvc.SubmitDecision(ctx, 12, 7, match.StatusAccepted); err != nil || got != match.OverallMatched {
		t.Fatalf("second accept: status=%v err=%v", got, err)
	}

	var chats []Chat
	if err := db.Find(&chats).Error; err != nil {
		t.Fatalf("load chats: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected exactly one chat, got %d", len(chats))
	}
	c := chats[0]
	if !c.HasParticipant(7) || !c.HasParticipant(12) {
		t.Fatalf("chat has wrong participants: %+v", c)
	}

	msg, err := chatSvc.SendMessage(ctx, c.ID, 7, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := chatSvc.MarkRead(ctx, c.ID, 12); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	msgs, err := chatSvc.ListMessages(ctx, c.ID, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != msg.ID || msgs[0].ReadAt == nil {
		t.Fatalf("expected one read message, got %+v", msgs)
	}

	if got := b.directTo(7); len(got) != 1 {
		t.Fatalf("expected one receipt to user 7, got %d", len(got))
	}
	if got := b.directTo(12); len(got) != 0 {
		t.Fatalf("user 12 must not get a receipt, got %d", len(got))
	}
}

// A rejection anywhere in the pair's history at decision time means no chat.
func TestRejectedPairNeverGetsChat(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db, 5, 9)
	chatSvc, _ := newTestService(t, db)
	matchSvc := match.NewService(match.NewRepo(db), users.NewDBDirectory(db), chatSvc)
	ctx := context.Background()

	if _, err := matchSvc.SubmitDecision(ctx, 5, 9, match.StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got, err := matchSvc.SubmitDecision(ctx, 9, 5, match.StatusAccepted); err != nil || got != match.OverallRejected {
		t.Fatalf("accept after reject: status=%v err=%v", got, err)
	}

	var cnt int64
	if err := db.Model(&Chat{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count chats: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("rejected pair must have no chat, got %d", cnt)
	}
}
