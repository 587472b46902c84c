package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// Connector is a source-specific adapter translating a normalized query into
// platform requests and platform responses into UnifiedPosts.
type Connector interface {
	// Platform returns the platform this connector serves.
	Platform() models.Platform

	// RequiredCredentials names the configuration keys the connector needs.
	// An empty slice means the connector works unauthenticated.
	RequiredCredentials() []string

	// Authenticate verifies credentials are present and usable. It returns an
	// *AuthenticationError on bad or missing credentials; the failure is
	// fatal for this platform only, never for the whole run. Missing
	// credentials are detected here, before any network call.
	Authenticate(ctx context.Context) error

	// FetchPosts executes one query and returns normalized posts plus the
	// cursor for the next incremental fetch (nil when the provider gave no
	// continuation marker). Items that cannot be normalized are skipped,
	// never abort the batch.
	FetchPosts(ctx context.Context, query string, cursor *models.FetchCursor, limit int) ([]models.UnifiedPost, *models.FetchCursor, error)

	// Close releases any long-lived network session.
	Close() error
}

// Registry maps each platform to its connectors, resolved once at startup.
// Every platform has a primary connector; platforms with an official API may
// additionally carry a scrape-based supplement that runs after the primary.
type Registry struct {
	mu          sync.RWMutex
	primaries   map[models.Platform]Connector
	supplements map[models.Platform]Connector
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{
		primaries:   make(map[models.Platform]Connector),
		supplements: make(map[models.Platform]Connector),
	}
}

// Register installs the primary connector for its platform, replacing any
// previous one.
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primaries[c.Platform()] = c
}

// RegisterSupplement installs a secondary connector that runs after the
// primary for the same platform, typically a scrape fallback behind an
// API-backed connector.
func (r *Registry) RegisterSupplement(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supplements[c.Platform()] = c
}

// Lookup returns the primary connector registered for the platform.
func (r *Registry) Lookup(platform models.Platform) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.primaries[platform]
	return c, ok
}

// LookupSupplement returns the platform's secondary connector, if any.
func (r *Registry) LookupSupplement(platform models.Platform) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.supplements[platform]
	return c, ok
}

// Platforms lists the platforms with at least one registered connector.
func (r *Registry) Platforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]models.Platform, 0, len(r.primaries))
	for p := range r.primaries {
		platforms = append(platforms, p)
	}
	for p := range r.supplements {
		if _, ok := r.primaries[p]; !ok {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

// AuthStatus checks every platform's primary connector and reports "ok" or
// the authentication failure. A platform whose only connector is a supplement
// reports that connector instead. Used by the status endpoint.
func (r *Registry) AuthStatus(ctx context.Context) map[models.Platform]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[models.Platform]string, len(r.primaries))
	for platform, c := range r.primaries {
		if err := c.Authenticate(ctx); err != nil {
			status[platform] = err.Error()
		} else {
			status[platform] = "ok"
		}
	}
	for platform, c := range r.supplements {
		if _, ok := r.primaries[platform]; ok {
			continue
		}
		if err := c.Authenticate(ctx); err != nil {
			status[platform] = err.Error()
		} else {
			status[platform] = "ok"
		}
	}
	return status
}

// shortHash derives a short stable identifier, used to mint platform-qualified
// post IDs from URLs.
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// CloseAll releases every registered connector's resources on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.primaries {
		_ = c.Close()
	}
	for _, c := range r.supplements {
		_ = c.Close()
	}
}
