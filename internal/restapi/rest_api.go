package restapi

import (
	"livetrack.fleetops.io/internal/app"
)

type RestAPI struct {
	*app.Application
	hub *Hub
}

// NewRestAPI creates a new RestAPI instance with a running broadcast hub.
// The hub relays tracker frames to every connected stream client.
func NewRestAPI(application *app.Application) *RestAPI {
	api := &RestAPI{
		Application: application,
		hub:         NewHub(application.Logger),
	}
	go api.hub.Run()
	if application.Tracker != nil {
		application.Tracker.Subscribe(api.broadcastFrame)
	}
	return api
}
