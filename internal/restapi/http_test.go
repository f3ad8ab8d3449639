package restapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"livetrack.fleetops.io/internal/app"
	"livetrack.fleetops.io/internal/logging"
	"livetrack.fleetops.io/internal/models"
	"livetrack.fleetops.io/internal/profiles"
	"livetrack.fleetops.io/internal/tracker"
)

// createTestApi creates a RestAPI over a tracker seeded with two vehicles.
func createTestApi(t *testing.T) *RestAPI {
	t.Helper()

	provider := profiles.NewStatic(map[string]models.Profile{
		"jeep-01": {DriverName: "R. Santos", LicensePlate: "NBC 1234"},
	})
	tr := tracker.New(tracker.DefaultConfig(), nil, nil, provider, nil)

	now := time.Now()
	tr.ApplyBatch(context.Background(), []models.VehicleFix{
		{
			VehicleID:  "jeep-01",
			Position:   models.LatLng{Lat: 14.5995, Lon: 120.9842},
			Status:     models.StatusIdle,
			ObservedAt: now,
		},
		{
			VehicleID:  "jeep-02",
			Position:   models.LatLng{Lat: 14.6010, Lon: 120.9850},
			Status:     models.StatusOffline,
			ObservedAt: now,
		},
	})

	application := &app.Application{
		Config: app.Config{
			Env:     "test",
			ApiKeys: []string{"TEST"},
		},
		Logger:  slog.Default(),
		Tracker: tr,
	}

	return NewRestAPI(application)
}

// serveAndRetrieveEndpoint sets up a test server, makes a request to the
// specified endpoint, and returns the response and decoded model.
func serveAndRetrieveEndpoint(t *testing.T, endpoint string) (*RestAPI, *http.Response, models.ResponseModel) {
	api := createTestApi(t)
	resp, model := serveApiAndRetrieveEndpoint(t, api, http.MethodGet, endpoint)
	return api, resp, model
}

func serveApiAndRetrieveEndpoint(t *testing.T, api *RestAPI, method, endpoint string) (*http.Response, models.ResponseModel) {
	t.Helper()

	server := httptest.NewServer(api.Router())
	defer server.Close()

	req, err := http.NewRequest(method, server.URL+endpoint, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "test")),
		"http_response_body")

	var response models.ResponseModel
	err = json.NewDecoder(resp.Body).Decode(&response)
	require.NoError(t, err)

	return resp, response
}
