package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studybuddy/backend/internal/common"
)

func (h *Handler) ListChats(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chats, err := h.ChatSvc.ListChats(c.Request.Context(), uid)
	if err != nil {
		failFromError(c, err)
		return
	}
	common.OK(c, gin.H{"chats": chats})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chatID := c.Param("chat_id")
	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), chatID, uid)
	if err != nil {
		failFromError(c, err)
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

type sendMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	chatID := c.Param("chat_id")
	msg, err := h.ChatSvc.SendMessage(c.Request.Context(), chatID, uid, req.Content)
	if err != nil {
		failFromError(c, err)
		return
	}
	common.OK(c, gin.H{"message": msg})
}

// MarkChatRead marks everything unread from the other participant.
// Subscribers of the senders' private channels get the receipts; the HTTP
// response itself carries no content.
func (h *Handler) MarkChatRead(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chatID := c.Param("chat_id")
	if err := h.ChatSvc.MarkRead(c.Request.Context(), chatID, uid); err != nil {
		failFromError(c, err)
		return
	}
	common.OK(c, nil)
}
