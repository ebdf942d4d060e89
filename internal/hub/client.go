package hub

import "github.com/studybuddy/backend/internal/chat"

// Client is one live subscription. It abstracts the underlying transport
// so the hub can manage connection types uniformly (websocket today, but
// tests plug in fakes).
type Client interface {
	// GetUserID returns the authenticated user this subscription belongs to.
	GetUserID() uint64

	// GetSendChannel returns the channel the hub pushes events into. It
	// must be buffered; a subscriber that cannot drain it is dropped.
	GetSendChannel() chan<- chat.Event

	// Run starts the client's pumps.
	Run()

	// Close tears the subscription down. Called by the hub exactly once.
	Close()
}
