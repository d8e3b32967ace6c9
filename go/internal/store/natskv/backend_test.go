package natskv

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := natstest.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}

func newBackend(t *testing.T, srv *server.Server) *Backend {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = srv.ClientURL()
	cfg.Bucket = "TEST"
	cfg.MaxRetries = 100
	b, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func setupStore(t *testing.T) *store.DocumentStore {
	t.Helper()
	return store.NewDocumentStore(newBackend(t, runServer(t)))
}

func TestDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	path := store.RoomPath("h1", "d1", "s1", "r1")
	require.NoError(t, s.Set(ctx, path, map[string]any{"name": "1번방", "patientName": "A"}))
	require.NoError(t, s.Update(ctx, path, map[string]any{"memo": "note"}))

	v, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "1번방", "patientName": "A", "memo": "note"}, v)

	require.NoError(t, s.Remove(ctx, store.SectionsPath("h1", "d1")))
	v, err = s.Get(ctx, path)
	require.NoError(t, err)
	assert.Nil(t, v)

	// removing what is already gone is a no-op
	require.NoError(t, s.Remove(ctx, store.SectionsPath("h1", "d1")))
}

func TestCreateAfterDelete(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	path := store.RoomPath("h1", "d1", "s1", "r1")

	require.NoError(t, s.Set(ctx, path, map[string]any{"name": "1번방"}))
	require.NoError(t, s.Remove(ctx, path))
	require.NoError(t, s.Set(ctx, path, map[string]any{"name": "2번방"}))

	v, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "2번방"}, v)
}

func TestConcurrentFieldUpdatesBothSurvive(t *testing.T) {
	ctx := context.Background()
	srv := runServer(t)
	// separate connections so writers really race on revisions
	stores := []*store.DocumentStore{
		store.NewDocumentStore(newBackend(t, srv)),
		store.NewDocumentStore(newBackend(t, srv)),
	}
	path := store.RoomPath("h1", "d1", "s1", "r1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := stores[i%len(stores)]
			assert.NoError(t, s.Update(ctx, path, map[string]any{fmt.Sprintf("f%d", i): i}))
		}(i)
	}
	wg.Wait()

	v, err := stores[0].Get(ctx, path)
	require.NoError(t, err)
	assert.Len(t, v, 10)
}

func TestConditionalUpdateSkipsReplacedValue(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	path := store.RoomTimerPath("h1", "d1", "s1", "r1")
	require.NoError(t, s.Set(ctx, path, map[string]any{"type": "countdown", "startedAt": 2000}))

	stale := func(current any) bool {
		m, ok := current.(map[string]any)
		return ok && m["type"] == "countup"
	}
	applied, err := s.UpdateIf(ctx, path, stale, map[string]any{"currentTime": 601})
	require.NoError(t, err)
	assert.False(t, applied)

	v, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "countdown", "startedAt": float64(2000)}, v)
}

func TestSubscribeSeesRemoteWrites(t *testing.T) {
	ctx := context.Background()
	srv := runServer(t)
	local := store.NewDocumentStore(newBackend(t, srv))
	remote := store.NewDocumentStore(newBackend(t, srv))
	path := store.RoomTimerPath("h1", "d1", "s1", "r1")

	values := make(chan any, 10)
	sub, err := local.Subscribe(ctx, path, func(v any) { values <- v }, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	select {
	case v := <-values:
		assert.Nil(t, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	require.NoError(t, remote.Update(ctx, path, map[string]any{"currentTime": 42}))

	select {
	case v := <-values:
		assert.Equal(t, map[string]any{"currentTime": float64(42)}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("change not delivered")
	}
}
