package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomboard/go/internal/auth"
	"github.com/mcdev12/roomboard/go/internal/httputil"
	"github.com/mcdev12/roomboard/go/internal/liveview"
	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/mcdev12/roomboard/go/internal/store"
)

// StateProvider loads a board view when no display has it open
type StateProvider interface {
	BoardState(ctx context.Context, scope models.Scope) (liveview.View, error)
}

// StoreStateProvider reads the board straight from the store
type StoreStateProvider struct {
	store store.Store
	clock clockwork.Clock
}

// NewStoreStateProvider creates a provider that derives timers at clock.Now()
func NewStoreStateProvider(s store.Store, clock clockwork.Clock) *StoreStateProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StoreStateProvider{store: s, clock: clock}
}

func (p *StoreStateProvider) BoardState(ctx context.Context, scope models.Scope) (liveview.View, error) {
	return liveview.Load(ctx, p.store, scope, p.clock.Now())
}

// StateHandler handles HTTP requests for board state
type StateHandler struct {
	connectionManager *ConnectionManager
	stateProvider     StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(cm *ConnectionManager, provider StateProvider) *StateHandler {
	return &StateHandler{
		connectionManager: cm,
		stateProvider:     provider,
	}
}

// HandleGetBoardState answers with the live view when a display keeps the
// board open, and a one-shot load otherwise.
func (h *StateHandler) HandleGetBoardState(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if view, ok := h.connectionManager.LiveSnapshot(scope); ok {
		httputil.WriteJSON(w, http.StatusOK, view)
		return
	}
	view, err := h.stateProvider.BoardState(r.Context(), scope)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// RegisterStateRoutes registers the board state routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	mux.Handle("GET /api/board", mw(http.HandlerFunc(h.HandleGetBoardState)))
}
