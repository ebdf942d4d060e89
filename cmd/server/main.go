package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/studybuddy/backend/internal/chat"
	"github.com/studybuddy/backend/internal/config"
	"github.com/studybuddy/backend/internal/db"
	"github.com/studybuddy/backend/internal/httpapi"
	"github.com/studybuddy/backend/internal/hub"
	"github.com/studybuddy/backend/internal/match"
	"github.com/studybuddy/backend/internal/models"
	"github.com/studybuddy/backend/internal/store/rabbitmq"
	"github.com/studybuddy/backend/internal/store/redisstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment")
	}

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := gdb.AutoMigrate(
		&models.User{},
		&match.Match{},
		&chat.Chat{},
		&chat.Message{},
	); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rds.Ping(context.Background()); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// Match notifications are a nicety; run without them if the broker is
	// down rather than refusing to serve chat.
	var events chat.MatchEventPublisher
	if pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		log.Printf("rabbit unavailable, match notifications disabled: %v", err)
	} else {
		events = pub
		defer pub.Close()
	}

	h := hub.New(rds)
	go h.Run()

	r := httpapi.NewRouter(gdb, cfg, rds, h, events)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
	log.Printf("server listening on %s", cfg.HTTPAddr)
	log.Fatal(server.ListenAndServe())
}
