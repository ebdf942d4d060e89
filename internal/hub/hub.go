// Package hub fans persisted chat events out to live subscribers.
// Delivery is fire-and-forget: the hub never blocks the send path, never
// retries, and drops subscribers that cannot keep up. Clients that missed
// events recover through the listing endpoints.
package hub

import (
	"context"
	"log"

	"github.com/studybuddy/backend/internal/chat"
)

// PresenceTracker mirrors subscription lifetimes into a shared store so
// other components can show online state.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID uint64) error
	SetOffline(ctx context.Context, userID uint64) error
}

type delivery struct {
	targets []uint64
	event   chat.Event
}

type Hub struct {
	// clients is owned by the Run goroutine; all mutation goes through
	// the channels below.
	clients map[uint64]map[Client]struct{}

	registerCh   chan Client
	unregisterCh chan Client
	deliverCh    chan delivery

	presence PresenceTracker // nil disables presence mirroring
}

func New(presence PresenceTracker) *Hub {
	return &Hub{
		clients:      make(map[uint64]map[Client]struct{}),
		registerCh:   make(chan Client),
		unregisterCh: make(chan Client),
		deliverCh:    make(chan delivery, 64),
		presence:     presence,
	}
}

func (h *Hub) Register(c Client)   { h.registerCh <- c }
func (h *Hub) Unregister(c Client) { h.unregisterCh <- c }

// BroadcastToUsers implements chat.Broadcaster.
func (h *Hub) BroadcastToUsers(userIDs []uint64, event chat.Event) {
	h.deliverCh <- delivery{targets: userIDs, event: event}
}

// SendToUser implements chat.Broadcaster.
func (h *Hub) SendToUser(userID uint64, event chat.Event) {
	h.deliverCh <- delivery{targets: []uint64{userID}, event: event}
}

// Run is the hub dispatcher; start it once, as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.registerCh:
			h.add(c)
		case c := <-h.unregisterCh:
			h.remove(c)
		case d := <-h.deliverCh:
			h.dispatch(d)
		}
	}
}

func (h *Hub) add(c Client) {
	uid := c.GetUserID()
	conns, ok := h.clients[uid]
	if !ok {
		conns = make(map[Client]struct{})
		h.clients[uid] = conns
		if h.presence != nil {
			if err := h.presence.SetOnline(context.Background(), uid); err != nil {
				log.Printf("presence online failed user=%d err=%v", uid, err)
			}
		}
	}
	conns[c] = struct{}{}
}

func (h *Hub) remove(c Client) {
	uid := c.GetUserID()
	conns, ok := h.clients[uid]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	c.Close()
	if len(conns) == 0 {
		delete(h.clients, uid)
		if h.presence != nil {
			if err := h.presence.SetOffline(context.Background(), uid); err != nil {
				log.Printf("presence offline failed user=%d err=%v", uid, err)
			}
		}
	}
}

func (h *Hub) dispatch(d delivery) {
	for _, uid := range d.targets {
		for c := range h.clients[uid] {
			select {
			case c.GetSendChannel() <- d.event:
			default:
				// Subscriber is not draining its buffer; drop it rather
				// than stall the dispatcher.
				log.Printf("dropping slow subscriber user=%d", uid)
				h.remove(c)
			}
		}
	}
}
