package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/auth"
	"log/slog"
)

// AuthHandlers issues the operator tokens that unlock the mutating endpoints.
type AuthHandlers struct {
	cfg    auth.Config
	logger *slog.Logger
}

func NewAuthHandlers(cfg auth.Config, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{cfg: cfg, logger: logger}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Scope     string    `json:"scope"`
}

// Login handles POST /api/auth/login: exchange the admin credential for an
// operator token.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !h.cfg.VerifyAdminPassword(req.Password) {
		h.logger.Warn("failed login attempt", "ip", r.RemoteAddr)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := auth.Issue(h.cfg, "operator")
	if err != nil {
		h.logger.Error("failed to issue token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("operator token issued", "ip", r.RemoteAddr, "expires_at", expiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Scope:     auth.ScopeOperator,
	})
}

// Session handles GET /api/auth/session, reporting who the presented token
// belongs to. It runs behind the auth middleware, so reaching it at all means
// the token verified.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	subject, _ := auth.SubjectFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"subject": subject,
		"scope":   auth.ScopeOperator,
	})
}
