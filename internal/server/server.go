package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/handler"
	"github.com/dukerupert/famhub/internal/ledger"
	"github.com/dukerupert/famhub/internal/middleware"
	"github.com/dukerupert/famhub/internal/push"
	"github.com/dukerupert/famhub/internal/store"
	ws "github.com/dukerupert/famhub/internal/websocket"
)

// Config holds what the server needs beyond the database.
type Config struct {
	Tokens *auth.Tokens
	// Notifier is nil when push is not configured.
	Notifier       *push.Notifier
	VAPIDPublicKey string
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	tokens      *auth.Tokens
	familyH     *handler.FamilyHandler
	profileH    *handler.ProfileHandler
	choreH      *handler.ChoreHandler
	rewardH     *handler.RewardHandler
	groceryH    *handler.GroceryHandler
	noteH       *handler.NoteHandler
	gameH       *handler.GameHandler
	pushH       *handler.PushHandler
	wsScope     ws.ScopeFunc
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	profileStore := store.NewProfileStore(db)
	choreStore := store.NewChoreStore(db)
	rewardStore := store.NewRewardStore(db)
	groceryStore := store.NewGroceryStore(db)
	noteStore := store.NewNoteStore(db)
	scoreStore := store.NewGameScoreStore(db)
	pushStore := store.NewPushStore(db)

	l := ledger.New(db, logger)

	var pushH *handler.PushHandler
	if cfg.VAPIDPublicKey != "" {
		pushH = handler.NewPushHandler(pushStore, cfg.VAPIDPublicKey, logger.With("component", "push_handler"))
	}

	return &Server{
		db:          db,
		hub:         hub,
		tokens:      cfg.Tokens,
		familyH:     handler.NewFamilyHandler(db, cfg.Tokens, hub, logger.With("component", "family")),
		profileH:    handler.NewProfileHandler(profileStore, cfg.Tokens, hub, logger.With("component", "profile")),
		choreH:      handler.NewChoreHandler(choreStore, profileStore, l, hub, logger.With("component", "chore")),
		rewardH:     handler.NewRewardHandler(rewardStore, profileStore, l, hub, cfg.Notifier, logger.With("component", "reward")),
		groceryH:    handler.NewGroceryHandler(groceryStore, hub, logger.With("component", "grocery")),
		noteH:       handler.NewNoteHandler(noteStore, hub, logger.With("component", "note")),
		gameH:       handler.NewGameHandler(scoreStore, logger.With("component", "game")),
		pushH:       pushH,
		wsScope:     redemptionScope(profileStore),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// redemptionScope limits a child's redemptions subscription to its own rows,
// matching GET /api/redemptions.
func redemptionScope(profiles *store.ProfileStore) ws.ScopeFunc {
	return func(ctx context.Context, table string) (string, error) {
		if table != ws.TableRedemptions {
			return "", nil
		}
		return handler.RedemptionOwner(ctx, profiles, auth.FamilyID(ctx), auth.ProfileID(ctx))
	}
}

// Hub returns the realtime hub, so shutdown can disconnect subscribers.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("POST /api/families", s.limited(signupLimit, middleware.ClientIP, s.familyH.Create))
	mux.Handle("POST /api/families/join", s.limited(signupLimit, middleware.ClientIP, s.familyH.Join))

	s.registerProtectedRoutes(mux)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "db unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// Family signup and join are limited per address. Session switches are
// limited per target profile to bound PIN guessing.
var (
	signupLimit = middleware.Limit{Name: "family_signup", Requests: 10, Window: time.Minute}
	pinLimit    = middleware.Limit{Name: "profile_session", Requests: 5, Window: 5 * time.Minute}
)

func (s *Server) limited(l middleware.Limit, key middleware.KeyFunc, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, l, key)(h)
}

// Each protected route is wrapped on its own so the mux pattern is visible
// to the request logger.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.tokens)(h)
}

func (s *Server) parent(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.tokens)(middleware.RequireParent(h))
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/family", s.authed(s.familyH.Get))

	// Profiles
	mux.Handle("GET /api/me", s.authed(s.profileH.Me))
	mux.Handle("GET /api/profiles", s.authed(s.profileH.List))
	mux.Handle("POST /api/profiles", s.parent(s.profileH.Create))
	mux.Handle("PUT /api/profiles/{id}", s.authed(s.profileH.Update))
	mux.Handle("PUT /api/profiles/{id}/pin", s.authed(s.profileH.SetPIN))
	mux.Handle("DELETE /api/profiles/{id}/pin", s.authed(s.profileH.ClearPIN))
	mux.Handle("POST /api/profiles/{id}/session", s.authed(s.limited(pinLimit, middleware.TargetProfile("id"), s.profileH.SwitchSession).ServeHTTP))

	// Chores
	mux.Handle("GET /api/chores", s.authed(s.choreH.List))
	mux.Handle("POST /api/chores", s.parent(s.choreH.Create))
	mux.Handle("PUT /api/chores/{id}", s.parent(s.choreH.Update))
	mux.Handle("DELETE /api/chores/{id}", s.parent(s.choreH.Delete))
	mux.Handle("POST /api/chores/{id}/completion", s.authed(s.choreH.ToggleCompletion))

	// Rewards and redemptions. Role checks for the ledger routes happen in
	// the ledger against the stored profile.
	mux.Handle("GET /api/rewards", s.authed(s.rewardH.List))
	mux.Handle("POST /api/rewards", s.parent(s.rewardH.Create))
	mux.Handle("DELETE /api/rewards/{id}", s.parent(s.rewardH.Delete))
	mux.Handle("POST /api/rewards/{id}/redeem", s.authed(s.rewardH.Redeem))
	mux.Handle("GET /api/redemptions", s.authed(s.rewardH.ListRedemptions))
	mux.Handle("POST /api/redemptions/{id}/approve", s.authed(s.rewardH.Approve))
	mux.Handle("POST /api/redemptions/{id}/reject", s.authed(s.rewardH.Reject))

	// Groceries
	mux.Handle("GET /api/groceries", s.authed(s.groceryH.List))
	mux.Handle("POST /api/groceries", s.authed(s.groceryH.Create))
	mux.Handle("PUT /api/groceries/{id}", s.authed(s.groceryH.Update))
	mux.Handle("DELETE /api/groceries/{id}", s.authed(s.groceryH.Delete))
	mux.Handle("POST /api/groceries/clear-purchased", s.authed(s.groceryH.ClearPurchased))

	// Notes
	mux.Handle("GET /api/notes", s.authed(s.noteH.List))
	mux.Handle("POST /api/notes", s.authed(s.noteH.Create))
	mux.Handle("PUT /api/notes/{id}", s.authed(s.noteH.Update))
	mux.Handle("DELETE /api/notes/{id}", s.authed(s.noteH.Delete))

	// Mini-games
	mux.Handle("POST /api/games/{game_id}/scores", s.authed(s.gameH.RecordScore))
	mux.Handle("GET /api/games/{game_id}/highest-level", s.authed(s.gameH.HighestLevel))

	// Push notification API routes
	if s.pushH != nil {
		mux.Handle("GET /api/push/vapid-key", s.authed(s.pushH.VAPIDKey))
		mux.Handle("POST /api/push/subscriptions", s.authed(s.pushH.Subscribe))
		mux.Handle("DELETE /api/push/subscriptions", s.authed(s.pushH.Unsubscribe))
	}

	// WebSocket
	mux.Handle("GET /ws", s.authed(ws.HandleWebSocket(s.hub, s.wsScope, s.logger.With("component", "websocket"))))
}
