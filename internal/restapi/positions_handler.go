package restapi

import (
	"net/http"

	"livetrack.fleetops.io/internal/models"
)

// positionsHandler returns every tracked vehicle's marker, ordered by
// vehicle id.
func (api *RestAPI) positionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if ctx.Err() != nil {
		api.serverErrorResponse(w, r, ctx.Err())
		return
	}

	markers := api.Tracker.Snapshot()
	if markers == nil {
		markers = []models.VehicleMarker{}
	}

	api.sendResponse(w, r, models.NewListResponse(markers))
}
