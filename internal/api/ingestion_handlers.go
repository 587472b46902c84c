package api

import (
	"encoding/json"
	"net/http"

	"github.com/mentionwatch/mentionwatch/internal/ingestion"
	"github.com/mentionwatch/mentionwatch/internal/models"
	"log/slog"
)

// IngestionHandlers exposes on-demand pipeline runs and pipeline status.
type IngestionHandlers struct {
	orchestrator *ingestion.Orchestrator
	rules        ingestion.RuleRepository
	cursors      ingestion.CursorStore
	logger       *slog.Logger
}

func NewIngestionHandlers(orchestrator *ingestion.Orchestrator, rules ingestion.RuleRepository, cursors ingestion.CursorStore, logger *slog.Logger) *IngestionHandlers {
	return &IngestionHandlers{
		orchestrator: orchestrator,
		rules:        rules,
		cursors:      cursors,
		logger:       logger,
	}
}

// Run handles POST /api/ingestion/run. The body names an existing rule by ID
// or carries an inline ad-hoc rule.
func (h *IngestionHandlers) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RuleID string               `json:"rule_id"`
		Rule   *models.TrackingRule `json:"rule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var rule models.TrackingRule
	switch {
	case req.RuleID != "":
		stored, err := h.rules.GetByID(r.Context(), req.RuleID)
		if err != nil {
			h.logger.Error("failed to load rule", "rule_id", req.RuleID, "error", err)
			http.Error(w, "Failed to load rule", http.StatusInternalServerError)
			return
		}
		if stored == nil {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		rule = *stored
	case req.Rule != nil:
		rule = *req.Rule
		if err := rule.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "rule_id or rule is required", http.StatusBadRequest)
		return
	}

	result := h.orchestrator.RunIngestion(r.Context(), rule)
	writeJSON(w, http.StatusOK, result)
}

// RunAll handles POST /api/ingestion/run-all: an on-demand sweep over every
// active rule, ignoring the per-rule schedule (the background runner is the
// one that honors it).
func (h *IngestionHandlers) RunAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rules, err := h.rules.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list active rules", "error", err)
		http.Error(w, "Failed to list active rules", http.StatusInternalServerError)
		return
	}

	results := h.orchestrator.RunBulkIngestion(r.Context(), rules)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// Status handles GET /api/ingestion/status.
func (h *IngestionHandlers) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.orchestrator.Status(r.Context()))
}

// ResetCursor handles POST /api/ingestion/reset-cursor, forcing the next
// fetch for a (platform, rule) pair to start from scratch.
func (h *IngestionHandlers) ResetCursor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Platform string `json:"platform"`
		RuleID   string `json:"rule_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RuleID == "" {
		http.Error(w, "rule_id is required", http.StatusBadRequest)
		return
	}

	if err := h.cursors.Reset(r.Context(), platform, req.RuleID); err != nil {
		h.logger.Error("failed to reset cursor", "platform", platform, "rule_id", req.RuleID, "error", err)
		http.Error(w, "Failed to reset cursor", http.StatusInternalServerError)
		return
	}

	h.logger.Info("cursor reset", "platform", platform, "rule_id", req.RuleID)
	writeJSON(w, http.StatusOK, map[string]string{"platform": string(platform), "rule_id": req.RuleID})
}
