// Package config loads and watches the service configuration file.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port    int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	Env     string   `mapstructure:"env" validate:"required,oneof=development staging production"`
	APIKeys []string `mapstructure:"api_keys" validate:"required,min=1,dive,required"`
}

// TrackerConfig tunes the position pipeline.
type TrackerConfig struct {
	FreshnessWindowMs int `mapstructure:"freshness_window_ms" validate:"min=0"`
	FrameIntervalMs   int `mapstructure:"frame_interval_ms" validate:"min=0"`
}

// GTFSRTConfig points at the GTFS-Realtime vehicle positions feed.
type GTFSRTConfig struct {
	VehiclePositionsURL string `mapstructure:"vehicle_positions_url" validate:"omitempty,url"`
	AuthHeaderKey       string `mapstructure:"auth_header_key"`
	AuthHeaderValue     string `mapstructure:"auth_header_value"`
	PollIntervalSec     int    `mapstructure:"poll_interval_sec" validate:"min=0"`
}

// MQTTConfig points at the device location broker.
type MQTTConfig struct {
	BrokerURL string `mapstructure:"broker_url"`
	ClientID  string `mapstructure:"client_id"`
	Topic     string `mapstructure:"topic"`
}

// RoadSnapConfig points at the OSRM routing service.
type RoadSnapConfig struct {
	BaseURL    string `mapstructure:"base_url" validate:"omitempty,url"`
	TimeoutSec int    `mapstructure:"timeout_sec" validate:"min=0"`
}

// ProfilesConfig points at the driver profile service.
type ProfilesConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// AppConfig is the root of the configuration file.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	GTFSRT   GTFSRTConfig   `mapstructure:"gtfsrt"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	RoadSnap RoadSnapConfig `mapstructure:"roadsnap"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
}

// FreshnessWindow returns the configured window, or zero for the default.
func (c *AppConfig) FreshnessWindow() time.Duration {
	return time.Duration(c.Tracker.FreshnessWindowMs) * time.Millisecond
}

// FrameInterval returns the configured frame period, or zero for the default.
func (c *AppConfig) FrameInterval() time.Duration {
	return time.Duration(c.Tracker.FrameIntervalMs) * time.Millisecond
}

// Loader reads the configuration file, validates it, and watches it for
// changes. Readers always see a complete, validated snapshot.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate
	logger   *slog.Logger

	mu      sync.RWMutex
	current *AppConfig

	onReload []func(*AppConfig)
}

// NewLoader creates a loader for the given file path.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LIVETRACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Loader{
		v:        v,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "config")),
	}
}

// Load reads and validates the file, then begins watching it. A later
// invalid edit keeps the previous snapshot in place.
func (l *Loader) Load() (*AppConfig, error) {
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()

	l.v.OnConfigChange(func(e fsnotify.Event) {
		newCfg, err := l.unmarshal()
		if err != nil {
			l.logger.Error("ignoring invalid config change",
				slog.String("file", e.Name),
				slog.String("error", err.Error()))
			return
		}
		l.mu.Lock()
		l.current = newCfg
		callbacks := l.onReload
		l.mu.Unlock()

		l.logger.Info("configuration reloaded", slog.String("file", e.Name))
		for _, fn := range callbacks {
			fn(newCfg)
		}
	})
	l.v.WatchConfig()

	return cfg, nil
}

func (l *Loader) unmarshal() (*AppConfig, error) {
	var cfg AppConfig
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Current returns the latest validated snapshot.
func (l *Loader) Current() *AppConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnReload registers a callback invoked after each successful reload.
// Register before Load.
func (l *Loader) OnReload(fn func(*AppConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = append(l.onReload, fn)
}
