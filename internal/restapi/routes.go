package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type handlerFunc func(w http.ResponseWriter, r *http.Request)

func validateAPIKey(api *RestAPI, finalHandler handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.invalidAPIKeyResponse(w, r)
			return
		}
		finalHandler(w, r)
	}
}

// Router builds the HTTP routing table.
func (api *RestAPI) Router() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/api/track/positions.json", validateAPIKey(api, api.positionsHandler))
	router.HandlerFunc(http.MethodGet, "/api/track/vehicle/:id", validateAPIKey(api, api.vehicleHandler))
	router.HandlerFunc(http.MethodPost, "/api/track/vehicle/:id/select", validateAPIKey(api, api.selectHandler))
	router.HandlerFunc(http.MethodPost, "/api/track/deselect", validateAPIKey(api, api.deselectHandler))
	router.HandlerFunc(http.MethodGet, "/api/track/stream", validateAPIKey(api, api.streamHandler))
	router.HandlerFunc(http.MethodGet, "/api/track/health", api.healthHandler)

	return router
}
