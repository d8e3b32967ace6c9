package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Config holds Redis connection settings
type Config struct {
	Addr       string
	Password   string
	DB         int
	KeyPrefix  string
	MaxRetries int // optimistic transaction attempts per mutation
}

func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		KeyPrefix:  "roomboard",
		MaxRetries: 10,
	}
}

// Backend stores each document as a JSON string and announces changes on a
// per-document pub/sub channel.
type Backend struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, cfg Config) (*Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis")
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, cfg Config) *Backend {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	return &Backend{
		client:     client,
		prefix:     cfg.KeyPrefix,
		maxRetries: cfg.MaxRetries,
	}
}

var _ store.Backend = (*Backend)(nil)

func (b *Backend) docKey(root string) string {
	return b.prefix + ":doc:" + root
}

func (b *Backend) changeChannel(root string) string {
	return b.prefix + ":changed:" + root
}

func (b *Backend) Load(ctx context.Context, root string) ([]byte, error) {
	raw, err := b.client.Get(ctx, b.docKey(root)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", root, err)
	}
	return raw, nil
}

// Mutate runs fn inside WATCH/MULTI and retries when another writer got there first.
func (b *Backend) Mutate(ctx context.Context, root string, fn func(current []byte) ([]byte, error)) error {
	key := b.docKey(root)
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, next, 0)
			}
			pipe.Publish(ctx, b.changeChannel(root), root)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < b.maxRetries; attempt++ {
		err := b.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			log.Debug().Str("root", root).Int("attempt", attempt+1).Msg("document changed during mutation, retrying")
			continue
		}
		return fmt.Errorf("mutate %s: %w", root, err)
	}
	return fmt.Errorf("mutate %s: gave up after %d attempts", root, b.maxRetries)
}

func (b *Backend) Watch(ctx context.Context, root string) (<-chan store.WatchEvent, error) {
	pubsub := b.client.Subscribe(ctx, b.changeChannel(root))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", root, err)
	}

	out := make(chan store.WatchEvent, 1)
	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- store.WatchEvent{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}
