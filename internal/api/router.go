package api

import (
	"net/http"

	"github.com/mentionwatch/mentionwatch/internal/auth"
	"github.com/mentionwatch/mentionwatch/internal/ingestion"
	"log/slog"
)

// SetupRoutes configures all API routes. Reads are public; everything that
// mutates state or triggers upstream fetches requires a valid token.
func SetupRoutes(
	mux *http.ServeMux,
	orchestrator *ingestion.Orchestrator,
	rules ingestion.RuleRepository,
	posts ingestion.PostRepository,
	cursors ingestion.CursorStore,
	authConfig auth.Config,
	logger *slog.Logger,
) {
	authHandler := NewAuthHandlers(authConfig, logger)
	ruleHandler := NewRuleHandlers(rules, posts, logger)
	ingestionHandler := NewIngestionHandlers(orchestrator, rules, cursors, logger)

	authMiddleware := auth.Middleware(authConfig)
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authMiddleware(h).ServeHTTP(w, r)
		}
	}

	// Authentication routes; login is the only public one
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/session", protected(authHandler.Session))

	// Rule routes: listing and reading are public, mutation needs auth
	mux.HandleFunc("/api/rules", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			protected(ruleHandler.Rules)(w, r)
			return
		}
		ruleHandler.Rules(w, r)
	})
	mux.HandleFunc("/api/rules/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ruleHandler.RuleByID(w, r)
			return
		}
		protected(ruleHandler.RuleByID)(w, r)
	})

	// Ingestion routes
	mux.HandleFunc("/api/ingestion/run", protected(ingestionHandler.Run))
	mux.HandleFunc("/api/ingestion/run-all", protected(ingestionHandler.RunAll))
	mux.HandleFunc("/api/ingestion/reset-cursor", protected(ingestionHandler.ResetCursor))
	mux.HandleFunc("/api/ingestion/status", ingestionHandler.Status)
}
