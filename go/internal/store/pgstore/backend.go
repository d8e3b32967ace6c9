package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/mcdev12/roomboard/go/internal/sqlutil"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

// SchemaSQL creates the documents table
const SchemaSQL = `CREATE TABLE IF NOT EXISTS roomboard_documents (
	root       TEXT PRIMARY KEY,
	body       JSONB,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	selectBodySQL    = `SELECT body FROM roomboard_documents WHERE root = $1`
	selectForUpdate  = `SELECT body FROM roomboard_documents WHERE root = $1 FOR UPDATE`
	lockRootSQL      = `SELECT pg_advisory_xact_lock(hashtext($1))`
	upsertBodySQL    = `INSERT INTO roomboard_documents (root, body, updated_at) VALUES ($1, $2, now()) ON CONFLICT (root) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`
	deleteBodySQL    = `DELETE FROM roomboard_documents WHERE root = $1`
	notifyChangedSQL = `SELECT pg_notify($1, $2)`
)

// Config holds settings for the Postgres backend
type Config struct {
	DatabaseURL   string        // DSN for the LISTEN connection
	NotifyChannel string        // channel announcing changed roots
	PingInterval  time.Duration // keepalive for the LISTEN connection
}

func DefaultConfig() Config {
	return Config{
		NotifyChannel: "roomboard_documents",
		PingInterval:  90 * time.Second,
	}
}

// NotificationSource is the part of *pq.Listener the backend uses
type NotificationSource interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Backend stores documents as JSONB rows and fans out NOTIFY payloads
// (the changed root) to watchers.
type Backend struct {
	db     *sql.DB
	source NotificationSource
	cfg    Config

	mu       sync.Mutex
	watchers map[string]map[chan store.WatchEvent]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

var _ store.Backend = (*Backend)(nil)

// New opens a LISTEN connection on cfg.NotifyChannel and starts dispatching
func New(db *sql.DB, cfg Config) (*Backend, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for document notifications")

	return NewWithSource(db, l, cfg), nil
}

// NewWithSource builds a backend over an existing notification source
func NewWithSource(db *sql.DB, source NotificationSource, cfg Config) *Backend {
	if cfg.NotifyChannel == "" {
		cfg.NotifyChannel = DefaultConfig().NotifyChannel
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		db:       db,
		source:   source,
		cfg:      cfg,
		watchers: make(map[string]map[chan store.WatchEvent]struct{}),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go b.dispatch(ctx)
	return b
}

// EnsureSchema creates the documents table when missing
func (b *Backend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (b *Backend) Load(ctx context.Context, root string) ([]byte, error) {
	var body pqtype.NullRawMessage
	err := b.db.QueryRowContext(ctx, selectBodySQL, root).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", root, err)
	}
	return sqlutil.FromNullRawMessage(body), nil
}

// documentQueries binds the statements of one mutation to its transaction
type documentQueries struct {
	tx *sql.Tx
}

func newDocumentQueries(tx *sql.Tx) *documentQueries {
	return &documentQueries{tx: tx}
}

// Mutate serializes writers of one root with a transaction-scoped advisory
// lock, so creating a missing document cannot race either.
func (b *Backend) Mutate(ctx context.Context, root string, fn func(current []byte) ([]byte, error)) error {
	return sqlutil.Run(ctx, b.db, newDocumentQueries, func(q *documentQueries) error {
		if _, err := q.tx.ExecContext(ctx, lockRootSQL, root); err != nil {
			return fmt.Errorf("lock %s: %w", root, err)
		}

		var body pqtype.NullRawMessage
		err := q.tx.QueryRowContext(ctx, selectForUpdate, root).Scan(&body)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("select %s: %w", root, err)
		}
		current := sqlutil.FromNullRawMessage(body)

		next, err := fn(current)
		if err != nil {
			return err
		}

		if next == nil {
			if current == nil {
				return nil
			}
			if _, err := q.tx.ExecContext(ctx, deleteBodySQL, root); err != nil {
				return fmt.Errorf("delete %s: %w", root, err)
			}
		} else {
			if _, err := q.tx.ExecContext(ctx, upsertBodySQL, root, sqlutil.ToNullRawMessage(next)); err != nil {
				return fmt.Errorf("upsert %s: %w", root, err)
			}
		}

		// delivered to listeners on commit
		if _, err := q.tx.ExecContext(ctx, notifyChangedSQL, b.cfg.NotifyChannel, root); err != nil {
			return fmt.Errorf("notify %s: %w", root, err)
		}
		return nil
	})
}

func (b *Backend) Watch(ctx context.Context, root string) (<-chan store.WatchEvent, error) {
	ch := make(chan store.WatchEvent, 1)

	b.mu.Lock()
	if b.watchers[root] == nil {
		b.watchers[root] = make(map[chan store.WatchEvent]struct{})
	}
	b.watchers[root][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.mu.Lock()
		delete(b.watchers[root], ch)
		if len(b.watchers[root]) == 0 {
			delete(b.watchers, root)
		}
		b.mu.Unlock()
	}()

	return ch, nil
}

func (b *Backend) Close() error {
	b.cancel()
	<-b.done
	return b.source.Close()
}

func (b *Backend) dispatch(ctx context.Context) {
	defer close(b.done)

	pingTicker := time.NewTicker(b.cfg.PingInterval)
	defer pingTicker.Stop()

	notifications := b.source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("document listener shutting down")
			return
		case note, ok := <-notifications:
			if !ok {
				return
			}
			if note == nil {
				// nil notification means the connection was re-established;
				// changes may have been missed, so wake everyone
				b.signalAll()
				continue
			}
			b.signal(note.Extra)
		case <-pingTicker.C:
			if err := b.source.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (b *Backend) signal(root string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.watchers[root] {
		select {
		case ch <- store.WatchEvent{}:
		default:
		}
	}
}

func (b *Backend) signalAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, chans := range b.watchers {
		for ch := range chans {
			select {
			case ch <- store.WatchEvent{}:
			default:
			}
		}
	}
}
