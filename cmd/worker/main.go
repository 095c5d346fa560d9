package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"internlog/internal/config"
	"internlog/internal/notify"
	"internlog/internal/queue"
	"internlog/internal/store"
)

// Worker consumes ledger events and materializes notification rows so a
// failed delivery never fails the originating request.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "internlog:events")
	}

	notes := notify.NewPostgresRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for ledger events...")
	for msg := range messages {
		var evt notify.Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("malformed event %q: %v", msg.Type, err)
			continue
		}

		n, ok := notify.FromEvent(evt)
		if !ok {
			log.Printf("skipping unknown event kind %q", evt.Kind)
			continue
		}

		if _, err := notes.Insert(ctx, n); err != nil {
			log.Printf("notification insert failed for %s: %v", evt.RequestID, err)
			continue
		}
		log.Printf("notified %s for request %s", evt.Kind, evt.RequestID)
	}

	log.Println("worker stopped")
}
