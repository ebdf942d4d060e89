package hub

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/studybuddy/backend/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	sendBuffer = 32
)

// WSClient is a websocket subscription. All chat operations go through the
// REST API; the socket is push-only, so the read pump exists to service
// pings and to notice the peer going away.
type WSClient struct {
	userID uint64
	conn   *websocket.Conn
	hub    *Hub
	send   chan chat.Event
}

func NewWSClient(userID uint64, conn *websocket.Conn, h *Hub) *WSClient {
	return &WSClient{
		userID: userID,
		conn:   conn,
		hub:    h,
		send:   make(chan chat.Event, sendBuffer),
	}
}

func (c *WSClient) GetUserID() uint64                 { return c.userID }
func (c *WSClient) GetSendChannel() chan<- chat.Event { return c.send }

func (c *WSClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the send channel, which stops the write pump. The read
// pump stops on its own once the connection is closed.
func (c *WSClient) Close() {
	close(c.send)
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read user=%d err=%v", c.userID, err)
			}
			return
		}
		// Inbound frames are ignored; the socket is push-only.
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("ws encode user=%d err=%v", c.userID, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
