// Package profiles resolves driver identity shown on markers and overlays.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"livetrack.fleetops.io/internal/logging"
	"livetrack.fleetops.io/internal/models"
)

// DefaultTTL is how long a resolved profile is served from cache.
const DefaultTTL = 10 * time.Minute

// negativeTTL is how long a failed lookup is remembered before retrying,
// so a flapping profile service is not hammered once per frame batch.
const negativeTTL = 30 * time.Second

type cachedProfile struct {
	profile   models.Profile
	fetchedAt time.Time
	ttl       time.Duration
}

// HTTPProvider fetches driver profiles from the fleet management service
// and caches them. Lookups never fail the caller: any error yields the
// zero profile, which renders as a placeholder.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]cachedProfile
}

// NewHTTPProvider creates a provider against the given base URL. The
// profile endpoint is GET {baseURL}/drivers/{vehicleID}.
func NewHTTPProvider(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "profiles")),
		ttl:     DefaultTTL,
		cache:   make(map[string]cachedProfile),
	}
}

// Lookup returns the driver profile for a vehicle, from cache when fresh.
func (p *HTTPProvider) Lookup(ctx context.Context, vehicleID string) models.Profile {
	p.mu.Lock()
	if entry, ok := p.cache[vehicleID]; ok && time.Since(entry.fetchedAt) < entry.ttl {
		p.mu.Unlock()
		return entry.profile
	}
	p.mu.Unlock()

	profile, err := p.fetch(ctx, vehicleID)
	ttl := p.ttl
	if err != nil {
		logging.LogError(p.logger, "profile lookup failed", err,
			slog.String("vehicle_id", vehicleID))
		profile = models.Profile{}
		ttl = negativeTTL
	}

	p.mu.Lock()
	p.cache[vehicleID] = cachedProfile{profile: profile, fetchedAt: time.Now(), ttl: ttl}
	p.mu.Unlock()
	return profile
}

func (p *HTTPProvider) fetch(ctx context.Context, vehicleID string) (models.Profile, error) {
	endpoint := fmt.Sprintf("%s/drivers/%s", p.baseURL, url.PathEscape(vehicleID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Profile{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.Profile{}, err
	}
	defer logging.SafeCloseWithLogging(resp.Body, p.logger, "http_response_body")

	if resp.StatusCode != http.StatusOK {
		return models.Profile{}, fmt.Errorf("profile service returned status %d", resp.StatusCode)
	}

	var profile models.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return models.Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return profile, nil
}

// CacheSize returns the number of cached entries, including negative ones.
func (p *HTTPProvider) CacheSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// Static is a fixed in-memory provider, useful for small fleets configured
// by file and for tests.
type Static struct {
	byID map[string]models.Profile
}

// NewStatic creates a provider over the given map.
func NewStatic(byID map[string]models.Profile) *Static {
	if byID == nil {
		byID = make(map[string]models.Profile)
	}
	return &Static{byID: byID}
}

// Lookup returns the configured profile, or the zero value.
func (s *Static) Lookup(_ context.Context, vehicleID string) models.Profile {
	return s.byID[vehicleID]
}
