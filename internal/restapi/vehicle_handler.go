package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"livetrack.fleetops.io/internal/models"
)

// vehicleHandler returns the marker for one vehicle.
func (api *RestAPI) vehicleHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	vehicleID := params.ByName("id")

	marker, ok := api.Tracker.Marker(vehicleID)
	if !ok {
		api.notFoundResponse(w, r)
		return
	}

	api.sendResponse(w, r, models.NewEntryResponse(marker))
}
