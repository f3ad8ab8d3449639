// Package roadsnap resolves road-following paths between pairs of
// coordinates through an OSRM-compatible routing service. Lookups are
// best-effort: any failure degrades to straight-line animation upstream.
package roadsnap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"livetrack.fleetops.io/internal/logging"
	"livetrack.fleetops.io/internal/models"
)

type routeResponse struct {
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Client fetches snapped paths from an OSRM routing endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a road-snap client for the given OSRM base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "roadsnap")),
	}
}

// SnapPath returns the ordered waypoints of a road-following path between
// the two endpoints. An empty or single-point result is reported as an
// error so callers fall back to the direct line.
func (c *Client) SnapPath(ctx context.Context, from, to models.LatLng) ([]models.LatLng, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		c.baseURL, from.Lon, from.Lat, to.Lon, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("road snap request failed: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "road_snap_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("road snap service returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed routeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("road snap decode failed: %w", err)
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("road snap returned no routes")
	}

	coords := parsed.Routes[0].Geometry.Coordinates
	path := make([]models.LatLng, 0, len(coords))
	for _, pair := range coords {
		if len(pair) < 2 {
			continue
		}
		path = append(path, models.LatLng{Lat: pair[1], Lon: pair[0]})
	}
	if len(path) < 2 {
		return nil, fmt.Errorf("road snap returned no usable path")
	}
	return path, nil
}
