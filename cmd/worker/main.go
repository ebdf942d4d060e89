// The worker consumes match-created events and mails both participants.
// It is intentionally outside the chat delivery path: losing an event
// loses an email, never a message.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/studybuddy/backend/internal/chat"
	"github.com/studybuddy/backend/internal/config"
	"github.com/studybuddy/backend/internal/db"
	"github.com/studybuddy/backend/internal/email"
	"github.com/studybuddy/backend/internal/models"
	"gorm.io/gorm"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment")
	}

	cfg := config.Load()
	gdb := db.Connect(cfg.DBDSN)

	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var ev chat.MatchCreatedEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.ChatID == "" {
					log.Printf("worker=%d bad event: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := notifyMatch(ctx, gdb, smtp, ev); err != nil {
					log.Printf("worker=%d event chat=%s failed cost=%s err=%v", workerID, ev.ChatID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed chat=%s err=%v", workerID, ev.ChatID, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func notifyMatch(ctx context.Context, gdb *gorm.DB, smtp email.SMTPConfig, ev chat.MatchCreatedEvent) error {
	var pair []models.User
	if err := gdb.WithContext(ctx).
		Where("id IN ?", []uint64{ev.UserOneID, ev.UserTwoID}).
		Find(&pair).Error; err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("expected 2 users for chat %s, found %d", ev.ChatID, len(pair))
	}

	for i, u := range pair {
		other := pair[1-i]
		subject := "You have a new study buddy!"
		body := "Hello " + u.DisplayName() + ",\n\n" +
			"You and " + other.DisplayName() + " accepted each other on StudyBuddy.\n" +
			"A conversation has been opened, go say hi!\n\n" +
			"Best regards,\n" +
			"StudyBuddy\n"
		if err := email.SendText(smtp, u.Email, subject, body); err != nil {
			return err
		}
	}
	return nil
}
