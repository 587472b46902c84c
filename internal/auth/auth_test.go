package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{JWTSecret: "secret", TokenDuration: time.Hour}
}

func TestIssueAndVerify(t *testing.T) {
	cfg := testConfig()

	token, expiresAt, err := Issue(cfg, "ops")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if until := time.Until(expiresAt); until < 55*time.Minute || until > time.Hour {
		t.Errorf("unexpected expiry %v", expiresAt)
	}

	subject, err := Verify(cfg, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != "ops" {
		t.Errorf("expected subject 'ops', got %q", subject)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	token, _, err := Issue(testConfig(), "ops")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := Config{JWTSecret: "other-secret", TokenDuration: time.Hour}
	if _, err := Verify(other, token); err == nil {
		t.Error("expected error for a token signed with a different secret")
	}
}

func TestVerify_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.TokenDuration = -time.Minute

	token, _, err := Issue(cfg, "ops")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Verify(testConfig(), token); err == nil {
		t.Error("expected error for an expired token")
	}
}

func TestVerifyAdminPassword_Plaintext(t *testing.T) {
	cfg := Config{AdminPassword: "s3cret"}

	if !cfg.VerifyAdminPassword("s3cret") {
		t.Error("expected the matching password accepted")
	}
	if cfg.VerifyAdminPassword("wrong") {
		t.Error("expected a mismatched password rejected")
	}
}

func TestVerifyAdminPassword_BcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}

	// When a hash is set it wins; the plaintext field is ignored.
	cfg := Config{AdminPasswordHash: string(hash), AdminPassword: "decoy"}
	if !cfg.VerifyAdminPassword("s3cret") {
		t.Error("expected the hashed password accepted")
	}
	if cfg.VerifyAdminPassword("decoy") {
		t.Error("the plaintext field must be ignored when a hash is configured")
	}
}

func TestMiddleware(t *testing.T) {
	cfg := testConfig()
	middleware := Middleware(cfg)

	var gotSubject string
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := Issue(cfg, "ops")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotSubject != "ops" {
			t.Errorf("expected the token subject on the context, got %q", gotSubject)
		}
	})
}
