package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is a ledger event in flight between the API and the worker.
type Message struct {
	Type string
	Body []byte
}

// Queue abstracts the event transport.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a channel-backed queue for dev runs and tests.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a queue holding at most size undelivered messages.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue is a list-backed queue: LPUSH to publish, BRPOP to consume.
// Messages survive worker restarts but not broker restarts.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "internlog:events"
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	return q.client.LPush(ctx, q.key, encode(msg)).Err()
}

// Consume polls the list until ctx is cancelled. Broker errors are retried
// rather than surfaced; a worker outlives a redis blip.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				continue
			}
			// BRPOP returns [key, value].
			if len(res) != 2 {
				continue
			}
			msg, err := decode(res[1])
			if err != nil {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Wire format is "type|body". The body is JSON and may itself contain '|',
// so only the first separator splits.
func encode(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func decode(s string) (Message, error) {
	typ, body, found := strings.Cut(s, "|")
	if !found {
		return Message{}, errors.New("queue: malformed message")
	}
	return Message{Type: typ, Body: []byte(body)}, nil
}
