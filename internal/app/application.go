package app

import (
	"log/slog"

	"livetrack.fleetops.io/internal/feed"
	"livetrack.fleetops.io/internal/tracker"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config  Config
	Logger  *slog.Logger
	Tracker *tracker.Tracker
	RTFeed  *feed.GTFSRTFeed
	MQFeed  *feed.MQTTFeed
}

// Config holds all the configuration settings for our Application: the
// network port the server listens on, the name of the current operating
// environment (development, staging, production, etc.) and the accepted
// API keys.
type Config struct {
	Port    int
	Env     string
	ApiKeys []string
}
