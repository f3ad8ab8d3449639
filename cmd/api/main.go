package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"livetrack.fleetops.io/internal/app"
	"livetrack.fleetops.io/internal/config"
	"livetrack.fleetops.io/internal/feed"
	"livetrack.fleetops.io/internal/logging"
	"livetrack.fleetops.io/internal/profiles"
	"livetrack.fleetops.io/internal/restapi"
	"livetrack.fleetops.io/internal/roadsnap"
	"livetrack.fleetops.io/internal/speed"
	"livetrack.fleetops.io/internal/tracker"
)

type flags struct {
	port        int
	env         string
	apiKeys     string
	configPath  string
	gtfsrtURL   string
	mqttBroker  string
	osrmURL     string
	profilesURL string
}

func main() {
	var f flags
	flag.IntVar(&f.port, "port", 4000, "API server port")
	flag.StringVar(&f.env, "env", "development", "Environment (development|staging|production)")
	flag.StringVar(&f.apiKeys, "api-keys", "test", "Comma Separated API Keys (test, etc)")
	flag.StringVar(&f.configPath, "config", "", "Path to a YAML config file (overrides other flags)")
	flag.StringVar(&f.gtfsrtURL, "gtfsrt-url", "", "GTFS-Realtime vehicle positions URL")
	flag.StringVar(&f.mqttBroker, "mqtt-broker", "", "MQTT broker URL for device location topics")
	flag.StringVar(&f.osrmURL, "osrm-url", "", "OSRM routing service base URL for road snapping")
	flag.StringVar(&f.profilesURL, "profiles-url", "", "Driver profile service base URL")
	flag.Parse()

	logger := newLogger(f.env)
	slog.SetDefault(logger)

	if err := run(f, logger); err != nil {
		logger.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(env string) *slog.Logger {
	if env == "development" {
		return slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return logging.NewStructuredLogger(os.Stdout, slog.LevelInfo)
}

func run(f flags, logger *slog.Logger) error {
	appConfig := app.Config{
		Port: f.port,
		Env:  f.env,
	}
	trackerConfig := tracker.Config{
		FreshnessWindow: tracker.DefaultFreshnessWindow,
		FrameInterval:   33 * time.Millisecond,
		Speed:           speed.DefaultConfig(),
		Animator:        tracker.DefaultAnimatorConfig(),
	}

	gtfsrtURL := f.gtfsrtURL
	mqttBroker := f.mqttBroker
	osrmURL := f.osrmURL
	profilesURL := f.profilesURL

	if f.configPath != "" {
		loader := config.NewLoader(f.configPath, logger)
		cfg, err := loader.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		appConfig.Port = cfg.Server.Port
		appConfig.Env = cfg.Server.Env
		appConfig.ApiKeys = cfg.Server.APIKeys
		if w := cfg.FreshnessWindow(); w > 0 {
			trackerConfig.FreshnessWindow = w
		}
		if iv := cfg.FrameInterval(); iv > 0 {
			trackerConfig.FrameInterval = iv
		}
		if cfg.GTFSRT.VehiclePositionsURL != "" {
			gtfsrtURL = cfg.GTFSRT.VehiclePositionsURL
		}
		if cfg.MQTT.BrokerURL != "" {
			mqttBroker = cfg.MQTT.BrokerURL
		}
		if cfg.RoadSnap.BaseURL != "" {
			osrmURL = cfg.RoadSnap.BaseURL
		}
		if cfg.Profiles.BaseURL != "" {
			profilesURL = cfg.Profiles.BaseURL
		}
	} else if f.apiKeys != "" {
		appConfig.ApiKeys = strings.Split(f.apiKeys, ",")
		for i := range appConfig.ApiKeys {
			appConfig.ApiKeys[i] = strings.TrimSpace(appConfig.ApiKeys[i])
		}
	}

	var snapper tracker.PathSnapper
	if osrmURL != "" {
		client := roadsnap.NewClient(osrmURL, 2*time.Second, logger)
		snapper = roadsnap.NewCachingSnapper(client, roadsnap.DefaultCacheSize)
	}

	var profileProvider tracker.ProfileProvider
	if profilesURL != "" {
		profileProvider = profiles.NewHTTPProvider(profilesURL, 5*time.Second, logger)
	}

	tr := tracker.New(trackerConfig, nil, snapper, profileProvider, logger)
	tr.Start()
	defer tr.Shutdown()

	application := &app.Application{
		Config:  appConfig,
		Logger:  logger,
		Tracker: tr,
	}

	if gtfsrtURL != "" {
		rtFeed := feed.NewGTFSRTFeed(feed.DefaultGTFSRTConfig(gtfsrtURL), tr, logger)
		rtFeed.Start()
		defer rtFeed.Shutdown()
		application.RTFeed = rtFeed
	}

	if mqttBroker != "" {
		mqFeed, err := feed.NewMQTTFeed(feed.DefaultMQTTConfig(mqttBroker), tr, logger)
		if err != nil {
			return fmt.Errorf("connecting mqtt feed: %w", err)
		}
		if err := mqFeed.Start(); err != nil {
			return fmt.Errorf("starting mqtt feed: %w", err)
		}
		defer mqFeed.Shutdown()
		application.MQFeed = mqFeed
	}

	if gtfsrtURL == "" && mqttBroker == "" {
		logger.Warn("no position feed configured; the map will stay empty")
	}

	api := restapi.NewRestAPI(application)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", appConfig.Port),
		Handler:      api.Router(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownErr := make(chan error, 1)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", slog.String("addr", srv.Addr), slog.String("env", appConfig.Env))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}
