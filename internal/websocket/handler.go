package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/famhub/internal/auth"
)

// ScopeFunc decides which rows of table the authenticated caller may follow.
// It returns the profile the subscription is limited to, or "" for every row
// in the family. An error refuses the subscription.
type ScopeFunc func(ctx context.Context, table string) (string, error)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and subscribes them to ?table= within the caller's family. scope
// may be nil, in which case every subscriber sees every row.
func HandleWebSocket(hub *Hub, scope ScopeFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		familyID := auth.FamilyID(r.Context())
		if familyID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
			return
		}

		table := r.URL.Query().Get("table")
		if !ValidTable(table) {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown table")
			return
		}

		var owner string
		if scope != nil {
			var err error
			if owner, err = scope(r.Context(), table); err != nil {
				logger.Warn("subscription refused", "table", table, "family_id", familyID, "error", err)
				writeError(w, http.StatusForbidden, "forbidden", "not allowed")
				return
			}
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN, any origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("subscriber connected", "table", table, "family_id", familyID, "owner", owner)
		client := NewClient(hub, conn, Topic{Table: table, FamilyID: familyID})
		client.owner = owner
		client.Run(r.Context())
		logger.Debug("subscriber disconnected", "table", table, "family_id", familyID)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
