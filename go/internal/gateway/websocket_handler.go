package gateway

import (
	"errors"
	"net/http"

	"github.com/mcdev12/roomboard/go/internal/auth"
	"github.com/mcdev12/roomboard/go/internal/httputil"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for board displays
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleBoardConnection streams the caller's department board. Browsers
// cannot set headers on a websocket, so the session token may also come as
// the token query parameter.
func (h *WebSocketHandler) HandleBoardConnection(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ScopeFrom(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	id, _ := auth.IdentityFrom(r.Context())
	if err := h.connectionManager.UpgradeConnection(w, r, id.UserID, scope); err != nil {
		log.Error().
			Err(err).
			Str("board", boardName(scope)).
			Str("user_id", id.UserID).
			Msg("failed to upgrade WebSocket connection")
		// a failed upgrade has already answered the request
		if !errors.Is(err, errUpgrade) {
			httputil.WriteError(w, r, err)
		}
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	mux.Handle("GET /ws/board", mw(http.HandlerFunc(h.HandleBoardConnection)))
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
