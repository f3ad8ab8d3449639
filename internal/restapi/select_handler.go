package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"livetrack.fleetops.io/internal/models"
)

// selectHandler toggles selection of a vehicle, mirroring a marker click.
// The response entry is the overlay when the vehicle ends up selected, or
// null when the click deselected it.
func (api *RestAPI) selectHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	vehicleID := params.ByName("id")

	if _, ok := api.Tracker.Marker(vehicleID); !ok {
		api.notFoundResponse(w, r)
		return
	}

	selected := api.Tracker.ToggleSelect(vehicleID)
	if !selected {
		api.sendResponse(w, r, models.NewEntryResponse(nil))
		return
	}

	api.sendResponse(w, r, models.NewEntryResponse(api.Tracker.Overlay()))
}

// deselectHandler clears any selection.
func (api *RestAPI) deselectHandler(w http.ResponseWriter, r *http.Request) {
	api.Tracker.ClearSelection()
	api.sendResponse(w, r, models.NewEntryResponse(nil))
}
