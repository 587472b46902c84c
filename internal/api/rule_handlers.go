package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mentionwatch/mentionwatch/internal/ingestion"
	"github.com/mentionwatch/mentionwatch/internal/models"
	"log/slog"
)

// RuleHandlers serves tracking rule management and per-rule post listing.
type RuleHandlers struct {
	rules  ingestion.RuleRepository
	posts  ingestion.PostRepository
	logger *slog.Logger
}

func NewRuleHandlers(rules ingestion.RuleRepository, posts ingestion.PostRepository, logger *slog.Logger) *RuleHandlers {
	return &RuleHandlers{
		rules:  rules,
		posts:  posts,
		logger: logger,
	}
}

// Rules handles GET and POST /api/rules
func (h *RuleHandlers) Rules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listRules(w, r)
	case http.MethodPost:
		h.createRule(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RuleHandlers) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list rules", "error", err)
		http.Error(w, "Failed to retrieve rules", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

func (h *RuleHandlers) createRule(w http.ResponseWriter, r *http.Request) {
	var rule models.TrackingRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := rule.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.rules.Create(r.Context(), rule); err != nil {
		h.logger.Error("failed to create rule", "error", err)
		http.Error(w, "Failed to create rule", http.StatusInternalServerError)
		return
	}

	h.logger.Info("rule created", "rule_id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// RuleByID handles /api/rules/{id} and its subresources:
//
//	GET    /api/rules/{id}
//	DELETE /api/rules/{id}
//	PUT    /api/rules/{id}/status
//	GET    /api/rules/{id}/posts
func (h *RuleHandlers) RuleByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rules/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	id := parts[0]
	if id == "" {
		http.Error(w, "Rule ID required", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "status":
			h.updateStatus(w, r, id)
		case "posts":
			h.listPosts(w, r, id)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getRule(w, r, id)
	case http.MethodDelete:
		h.deleteRule(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RuleHandlers) getRule(w http.ResponseWriter, r *http.Request, id string) {
	rule, err := h.rules.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get rule", "rule_id", id, "error", err)
		http.Error(w, "Failed to retrieve rule", http.StatusInternalServerError)
		return
	}
	if rule == nil {
		http.Error(w, "Rule not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *RuleHandlers) deleteRule(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.rules.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete rule", "rule_id", id, "error", err)
		http.Error(w, "Failed to delete rule", http.StatusInternalServerError)
		return
	}
	h.logger.Info("rule deleted", "rule_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RuleHandlers) updateStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	status := models.RuleStatus(req.Status)
	switch status {
	case models.RuleStatusActive, models.RuleStatusPaused:
	default:
		http.Error(w, "Status must be 'active' or 'paused'", http.StatusBadRequest)
		return
	}

	if err := h.rules.UpdateStatus(r.Context(), id, status); err != nil {
		h.logger.Error("failed to update rule status", "rule_id", id, "error", err)
		http.Error(w, "Failed to update rule", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

func (h *RuleHandlers) listPosts(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	posts, err := h.posts.ListByRule(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list posts", "rule_id", id, "error", err)
		http.Error(w, "Failed to retrieve posts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rule_id": id,
		"posts":   posts,
		"count":   len(posts),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
