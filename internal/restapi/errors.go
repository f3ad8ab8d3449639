package restapi

import (
	"encoding/json"
	"net/http"

	"livetrack.fleetops.io/internal/models"
)

// errorEnvelope matches the legacy error shape clients already parse.
// Note the version is 1, unlike the 2 on success responses.
type errorEnvelope struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
}

func (api *RestAPI) writeErrorResponse(w http.ResponseWriter, status int, text string) {
	response := errorEnvelope{
		Code:        status,
		CurrentTime: models.ResponseCurrentTime(),
		Text:        text,
		Version:     1,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.Logger.Error("failed to encode error response", "error", err)
	}
}

// invalidAPIKeyResponse sends a 401 Unauthorized response with the required
// format for invalid API key errors.
func (api *RestAPI) invalidAPIKeyResponse(w http.ResponseWriter, r *http.Request) {
	api.writeErrorResponse(w, http.StatusUnauthorized, "permission denied")
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.Logger.Error("internal server error", "method", r.Method, "path", r.URL.Path, "error", err)
	api.writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
}

func (api *RestAPI) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	api.writeErrorResponse(w, http.StatusNotFound, "resource not found")
}
