package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the JetStream key-value backend
type Config struct {
	URL           string
	Bucket        string
	MaxRetries    int // compare-and-set attempts per mutation
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default JetStream key-value configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Bucket:        "ROOMBOARD",
		MaxRetries:    10,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Backend keeps one KV entry per document and uses entry revisions for
// optimistic concurrency.
type Backend struct {
	nc         *nats.Conn
	kv         jetstream.KeyValue
	maxRetries int
}

var _ store.Backend = (*Backend)(nil)

// New connects to NATS and creates the bucket if needed
func New(ctx context.Context, config Config) (*Backend, error) {
	opts := []nats.Option{
		nats.Name("roomboard"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      config.Bucket,
		Description: "roomboard documents",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create key-value bucket: %w", err)
	}

	log.Info().
		Str("url", config.URL).
		Str("bucket", config.Bucket).
		Msg("using JetStream key-value store")

	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultConfig().MaxRetries
	}
	return &Backend{nc: nc, kv: kv, maxRetries: maxRetries}, nil
}

func (b *Backend) Load(ctx context.Context, root string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, root)
	if isMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", root, err)
	}
	return entry.Value(), nil
}

// Mutate applies fn against the current revision and retries on a lost race.
func (b *Backend) Mutate(ctx context.Context, root string, fn func(current []byte) ([]byte, error)) error {
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		var (
			current  []byte
			revision uint64
		)
		entry, err := b.kv.Get(ctx, root)
		switch {
		case isMissing(err):
		case err != nil:
			return fmt.Errorf("get %s: %w", root, err)
		default:
			current, revision = entry.Value(), entry.Revision()
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		switch {
		case next == nil && revision == 0:
			return nil
		case next == nil:
			err = b.kv.Delete(ctx, root, jetstream.LastRevision(revision))
		case revision == 0:
			_, err = b.kv.Create(ctx, root, next)
		default:
			_, err = b.kv.Update(ctx, root, next, revision)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, jetstream.ErrKeyExists) {
			log.Debug().Str("root", root).Int("attempt", attempt+1).Msg("revision moved during mutation, retrying")
			continue
		}
		return fmt.Errorf("write %s: %w", root, err)
	}
	return fmt.Errorf("mutate %s: gave up after %d attempts", root, b.maxRetries)
}

func (b *Backend) Watch(ctx context.Context, root string) (<-chan store.WatchEvent, error) {
	watcher, err := b.kv.Watch(ctx, root, jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	out := make(chan store.WatchEvent, 1)
	go func() {
		defer func() {
			if err := watcher.Stop(); err != nil {
				log.Debug().Err(err).Str("root", root).Msg("failed to stop watcher")
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				// nil marks the end of the initial values, which UpdatesOnly skips
				if entry == nil {
					continue
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
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}

func isMissing(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}
