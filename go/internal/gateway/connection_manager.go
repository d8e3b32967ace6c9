package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/liveview"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

var errUpgrade = errors.New("failed to upgrade connection")

// BoardOpener starts a live board for a department
type BoardOpener func(ctx context.Context, scope models.Scope) (*liveview.Board, error)

// ConnectionManager manages WebSocket connections grouped by board. The
// first connection of a department opens its board and the last one closes it.
type ConnectionManager struct {
	pools  map[models.Scope]*boardPool
	mu     sync.Mutex
	closed bool

	open     BoardOpener
	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock
}

// boardPool is one live board and the displays watching it
type boardPool struct {
	scope   models.Scope
	board   *liveview.Board
	release func()
	refs    int // guarded by ConnectionManager.mu

	mu    sync.Mutex
	conns map[*Connection]bool
	last  liveview.View
}

// Connection represents a WebSocket connection to a display
type Connection struct {
	ID      string
	UserID  string
	Scope   models.Scope
	Conn    *websocket.Conn
	Send    chan []byte
	manager *ConnectionManager
	pool    *boardPool

	ConnectedAt time.Time
	closeOnce   sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, open BoardOpener, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	return &ConnectionManager{
		pools: make(map[models.Scope]*boardPool),
		open:  open,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		clock:  clock,
	}
}

// UpgradeConnection opens (or joins) the caller's board and upgrades the
// request. Board failures are reported before the upgrade.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string, scope models.Scope) error {
	// the board outlives the upgrade request
	pool, err := cm.acquire(context.WithoutCancel(r.Context()), scope)
	if err != nil {
		return err
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cm.releasePool(pool)
		return fmt.Errorf("%w: %w", errUpgrade, err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Scope:       scope,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		manager:     cm,
		pool:        pool,
		ConnectedAt: cm.clock.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Str("board", boardName(scope)).
		Msg("WebSocket connection established")
	return nil
}

// acquire returns the pool for scope, opening its board when none is live.
func (cm *ConnectionManager) acquire(ctx context.Context, scope models.Scope) (*boardPool, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		return nil, models.ErrNotInitialized
	}

	pool, ok := cm.pools[scope]
	if !ok {
		board, err := cm.open(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to open board: %w", err)
		}
		pool = &boardPool{scope: scope, board: board, conns: make(map[*Connection]bool)}
		pool.release = board.Listen(func(v liveview.View) { cm.broadcast(pool, v) })
		snap := board.Snapshot()
		pool.mu.Lock()
		if snap.Version >= pool.last.Version {
			pool.last = snap
		}
		pool.mu.Unlock()
		cm.pools[scope] = pool
		log.Info().Str("board", boardName(scope)).Msg("board pool opened")
	}
	pool.refs++
	return pool, nil
}

// releasePool drops one reference and closes the board with the last one.
func (cm *ConnectionManager) releasePool(pool *boardPool) {
	cm.mu.Lock()
	pool.refs--
	last := pool.refs <= 0
	if last && cm.pools[pool.scope] == pool {
		delete(cm.pools, pool.scope)
	}
	cm.mu.Unlock()

	if last {
		pool.release()
		pool.board.Close()
		log.Info().Str("board", boardName(pool.scope)).Msg("board pool closed")
	}
}

// registerConnection adds a connection and queues the current snapshot for it
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	pool := conn.pool
	pool.mu.Lock()
	defer pool.mu.Unlock()

	pool.conns[conn] = true
	cm.sendSnapshotLocked(pool, conn)

	log.Debug().
		Str("connection_id", conn.ID).
		Str("board", boardName(pool.scope)).
		Int("total_connections", len(pool.conns)).
		Msg("connection registered")
}

// unregisterConnection removes a connection from its pool
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	conn.closeOnce.Do(func() {
		pool := conn.pool
		pool.mu.Lock()
		delete(pool.conns, conn)
		close(conn.Send)
		pool.mu.Unlock()

		log.Info().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID).
			Str("board", boardName(pool.scope)).
			Msg("connection unregistered")

		cm.releasePool(pool)
	})
}

func (cm *ConnectionManager) sendSnapshotLocked(pool *boardPool, conn *Connection) {
	event, err := newEvent(pool.scope, EventTypeBoardSnapshot, pool.last.Version, cm.clock.Now(), pool.last)
	if err != nil {
		log.Error().Err(err).Msg("failed to build snapshot event")
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot event")
		return
	}
	select {
	case conn.Send <- data:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, snapshot dropped")
	}
}

// resync queues a fresh snapshot for one connection
func (cm *ConnectionManager) resync(conn *Connection) {
	pool := conn.pool
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if pool.conns[conn] {
		cm.sendSnapshotLocked(pool, conn)
	}
}

// broadcast turns a new board view into events for every connection of the
// pool: a board.snapshot when the board's shape changed, otherwise one
// room.updated per changed room.
func (cm *ConnectionManager) broadcast(pool *boardPool, view liveview.View) {
	pool.mu.Lock()
	if view.Version <= pool.last.Version {
		pool.mu.Unlock()
		return
	}
	structural, changed := diffViews(pool.last, view)
	pool.last = view

	var payloads [][]byte
	add := func(typ EventType, payload any) {
		event, err := newEvent(pool.scope, typ, view.Version, cm.clock.Now(), payload)
		if err != nil {
			log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build event for broadcast")
			return
		}
		data, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal event for broadcast")
			return
		}
		payloads = append(payloads, data)
	}
	if structural {
		add(EventTypeBoardSnapshot, view)
	} else {
		for _, rv := range changed {
			add(EventTypeRoomUpdated, rv)
		}
	}

	var slow []*Connection
	for conn := range pool.conns {
		for _, data := range payloads {
			select {
			case conn.Send <- data:
				continue
			default:
			}
			slow = append(slow, conn)
			break
		}
	}
	targets := len(pool.conns)
	pool.mu.Unlock()

	// closing the socket ends its read pump, which unregisters it
	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID).
			Msg("connection send buffer full, closing connection")
		conn.Conn.Close()
	}

	if len(payloads) > 0 {
		log.Debug().
			Str("board", boardName(pool.scope)).
			Uint64("version", view.Version).
			Int("events", len(payloads)).
			Int("connections", targets).
			Msg("board view broadcasted")
	}
}

// LiveSnapshot returns the view of a board that is currently open
func (cm *ConnectionManager) LiveSnapshot(scope models.Scope) (liveview.View, bool) {
	cm.mu.Lock()
	pool, ok := cm.pools[scope]
	cm.mu.Unlock()
	if !ok {
		return liveview.View{}, false
	}
	return pool.board.Snapshot(), true
}

// Close disconnects every display and closes every board
func (cm *ConnectionManager) Close() {
	cm.mu.Lock()
	cm.closed = true
	pools := make([]*boardPool, 0, len(cm.pools))
	for _, pool := range cm.pools {
		pools = append(pools, pool)
	}
	cm.pools = make(map[models.Scope]*boardPool)
	cm.mu.Unlock()

	for _, pool := range pools {
		pool.mu.Lock()
		for conn := range pool.conns {
			conn.Conn.Close()
		}
		pool.mu.Unlock()
		pool.release()
		pool.board.Close()
	}
	log.Info().Int("boards", len(pools)).Msg("connection manager closed")
}

// ConnectionStats describes the live pools
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveBoards     int            `json:"active_boards"`
	BoardConnections map[string]int `json:"board_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.Lock()
	pools := make([]*boardPool, 0, len(cm.pools))
	for _, pool := range cm.pools {
		pools = append(pools, pool)
	}
	cm.mu.Unlock()

	stats := ConnectionStats{ActiveBoards: len(pools), BoardConnections: make(map[string]int, len(pools))}
	for _, pool := range pools {
		pool.mu.Lock()
		count := len(pool.conns)
		pool.mu.Unlock()
		stats.TotalConnections += count
		stats.BoardConnections[boardName(pool.scope)] = count
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the display
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("ignored malformed client message")
		return
	}
	switch msg.Type {
	case clientResync:
		c.manager.resync(c)
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Str("type", msg.Type).
			Msg("received client message")
	}
}
