package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/liveview"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/rs/zerolog/log"
)

// Service is the board gateway: display websockets plus board state over HTTP
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the board gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Board            liveview.Config
}

// DefaultConfig returns default configuration for the board gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a gateway whose boards read and write s
func NewService(config Config, s store.Store, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	boardCfg := config.Board
	if boardCfg.Clock == nil {
		boardCfg.Clock = clock
	}
	open := func(ctx context.Context, scope models.Scope) (*liveview.Board, error) {
		return liveview.Open(ctx, s, scope, boardCfg)
	}

	connectionManager := NewConnectionManager(config.ConnectionConfig, open, clock)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(connectionManager, NewStoreStateProvider(s, clock)),
	}
}

// Start blocks until ctx is done, then disconnects every display
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting board gateway service")
	<-ctx.Done()
	log.Info().Msg("board gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	s.connectionManager.Close()
	log.Info().Msg("board gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state routes behind mw
func (s *Service) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	s.wsHandler.RegisterRoutes(mux, mw)
	s.stateHandler.RegisterStateRoutes(mux, mw)
	log.Info().Msg("board gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
