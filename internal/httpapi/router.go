package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studybuddy/backend/internal/chat"
	"github.com/studybuddy/backend/internal/common"
	"github.com/studybuddy/backend/internal/config"
	"github.com/studybuddy/backend/internal/httpapi/handlers"
	"github.com/studybuddy/backend/internal/httpapi/middleware"
	"github.com/studybuddy/backend/internal/hub"
	"github.com/studybuddy/backend/internal/store/redisstore"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, h *hub.Hub, events chat.MatchEventPublisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	hd := handlers.NewHandler(db, cfg, rds, h, events)

	r.GET("/ping", hd.Ping)

	// captcha
	r.POST("/captcha", hd.SendCaptcha)

	// CRUD users register
	r.POST("/users", hd.CreateUser)
	r.GET("/users/:id", hd.GetUserByID)

	// auth
	r.POST("/login", hd.Login)

	// push channel (token in query, see handler)
	r.GET("/ws", hd.ServeWebSocket)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", hd.Me)
	authGroup.PUT("/me", hd.UpdateMe)

	// matching (JWT required)
	authGroup.POST("/matches/decision", hd.SubmitMatchDecision)
	authGroup.GET("/matches/potential", hd.ListPotentialMatches)
	authGroup.GET("/matches/pending", hd.ListPendingMatches)

	// chat (JWT required)
	authGroup.GET("/chats", hd.ListChats)
	authGroup.GET("/chats/:chat_id/messages", hd.ListChatMessages)
	authGroup.POST("/chats/:chat_id/messages", hd.SendChatMessage)
	authGroup.POST("/chats/:chat_id/read", hd.MarkChatRead)

	return r
}
