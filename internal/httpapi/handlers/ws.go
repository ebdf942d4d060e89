package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/studybuddy/backend/internal/auth"
	"github.com/studybuddy/backend/internal/common"
	"github.com/studybuddy/backend/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The JWT in the query string is the access control; origin checks
	// add nothing for non-browser clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and registers a push subscription
// for the authenticated user. Browsers cannot set headers on websocket
// dials, so the token rides the query string.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		common.Fail(c, http.StatusUnauthorized, 40101, "missing token")
		return
	}
	uid, err := auth.ParseJWT(token, h.Cfg.JWTSecret)
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed user=%d err=%v", uid, err)
		return
	}

	client := hub.NewWSClient(uid, conn, h.Hub)
	h.Hub.Register(client)
	client.Run()
}
