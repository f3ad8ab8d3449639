package restapi

import (
	"net/http"

	"livetrack.fleetops.io/internal/models"
)

// healthHandler reports tracker counters and feed liveness. It is not
// behind the API key so load balancers can probe it.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := api.Tracker.Health()

	entry := map[string]interface{}{
		"status":  "ok",
		"tracker": health,
	}
	if api.RTFeed != nil {
		fetchedAt, err := api.RTFeed.LastFetch()
		feedStatus := map[string]interface{}{
			"lastFetchAt": fetchedAt,
		}
		if err != nil {
			feedStatus["lastError"] = err.Error()
		}
		entry["gtfsrtFeed"] = feedStatus
	}

	api.sendResponse(w, r, models.NewEntryResponse(entry))
}
