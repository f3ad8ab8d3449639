package restapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionsHandlerRequiresValidApiKey(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/track/positions.json?key=invalid")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, model.Code)
	assert.Equal(t, "permission denied", model.Text)
	assert.Equal(t, 1, model.Version)
}

func TestPositionsHandlerEndToEnd(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/track/positions.json?key=TEST")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusOK, model.Code)
	assert.Equal(t, "OK", model.Text)
	assert.Equal(t, 2, model.Version)

	data, ok := model.Data.(map[string]interface{})
	require.True(t, ok)

	list, ok := data["list"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)

	first, ok := list[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "jeep-01", first["vehicleId"])
	assert.Equal(t, "idle", first["status"])
	assert.Equal(t, "#6b7280", first["color"])
	assert.Equal(t, "R. Santos", first["driverName"])
	assert.False(t, first["selected"].(bool))

	position, ok := first["position"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 14.5995, position["lat"], 1e-8)
	assert.InDelta(t, 120.9842, position["lon"], 1e-8)

	second, ok := list[1].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "jeep-02", second["vehicleId"])
	assert.Equal(t, "offline", second["status"])
	assert.Equal(t, "#ef4444", second["color"])
}
