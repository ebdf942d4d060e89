package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/studybuddy/backend/internal/apperrors"
	"github.com/studybuddy/backend/internal/chat"
	"github.com/studybuddy/backend/internal/common"
	"github.com/studybuddy/backend/internal/config"
	"github.com/studybuddy/backend/internal/email"
	"github.com/studybuddy/backend/internal/httpapi/middleware"
	"github.com/studybuddy/backend/internal/hub"
	"github.com/studybuddy/backend/internal/match"
	"github.com/studybuddy/backend/internal/store/redisstore"
	"github.com/studybuddy/backend/internal/users"
	"gorm.io/gorm"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	SMTPSetting email.SMTPConfig

	Hub      *hub.Hub
	Users    users.Directory
	ChatSvc  *chat.Service
	MatchSvc *match.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, h *hub.Hub, events chat.MatchEventPublisher) *Handler {
	dir := users.NewDBDirectory(db)

	chatSvc := chat.NewService(chat.NewRepo(db), dir, h, events, rds)
	matchSvc := match.NewService(match.NewRepo(db), dir, chatSvc)

	return &Handler{
		DB:    db,
		Cfg:   cfg,
		Redis: rds,
		SMTPSetting: email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
		Hub:      h,
		Users:    dir,
		ChatSvc:  chatSvc,
		MatchSvc: matchSvc,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// failFromError maps the service error taxonomy onto the response envelope.
func failFromError(c *gin.Context, err error) {
	status := apperrors.HTTPStatusFromError(err)
	code := status*100 + 1
	msg := err.Error()
	if status == 500 {
		// Do not leak internals.
		msg = "internal error"
	}
	common.Fail(c, status, code, msg)
}
