package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"livetrack.fleetops.io/internal/models"
)

const locationTopicPattern = "/fleet/vehicle/+/location"

// MQTTConfig configures the MQTT location feed.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	// Topic overrides the default location topic pattern when set.
	Topic string
	// FlushInterval is how often the retained snapshot is forwarded to the
	// tracker as one batch.
	FlushInterval time.Duration
	// OfflineAfter marks a silent vehicle offline in the snapshot.
	OfflineAfter time.Duration
	// ExpireAfter evicts a silent vehicle from the snapshot entirely.
	ExpireAfter time.Duration
	// ConnectTimeout bounds the initial broker connection.
	ConnectTimeout time.Duration
}

// DefaultMQTTConfig returns the production tuning.
func DefaultMQTTConfig(brokerURL string) MQTTConfig {
	return MQTTConfig{
		BrokerURL:      brokerURL,
		ClientID:       "livetrack-subscriber",
		Topic:          locationTopicPattern,
		FlushInterval:  time.Second,
		OfflineAfter:   5 * time.Minute,
		ExpireAfter:    30 * time.Minute,
		ConnectTimeout: 10 * time.Second,
	}
}

// locationMessage is the wire payload published by vehicle devices.
type locationMessage struct {
	VehicleID string  `json:"vehicle_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpeedKmh  float64 `json:"speed_kmh"`
	HasSpeed  bool    `json:"-"`
	Timestamp int64   `json:"timestamp"`
}

func (m *locationMessage) UnmarshalJSON(data []byte) error {
	type alias locationMessage
	aux := struct {
		*alias
		SpeedKmh *float64 `json:"speed_kmh"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.SpeedKmh != nil {
		m.SpeedKmh = *aux.SpeedKmh
		m.HasSpeed = true
	}
	return nil
}

func validateLocationMessage(msg *locationMessage) error {
	if msg.VehicleID == "" {
		return fmt.Errorf("vehicle_id: required")
	}
	if msg.Latitude < -90 || msg.Latitude > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if msg.Longitude < -180 || msg.Longitude > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if msg.Timestamp <= 0 {
		return fmt.Errorf("timestamp: must be positive")
	}
	return nil
}

// MQTTFeed subscribes to per-vehicle location topics and folds messages
// into a retained snapshot. Because MQTT delivers per-vehicle updates while
// the tracker consumes whole-fleet batches, the snapshot is flushed on a
// fixed cadence with silent vehicles aged to offline and eventually evicted.
type MQTTFeed struct {
	cfg     MQTTConfig
	client  mqtt.Client
	applier Applier
	logger  *slog.Logger

	mu       sync.Mutex
	retained map[string]models.VehicleFix

	shutdownChan chan struct{}
	wg           sync.WaitGroup
}

// NewMQTTFeed connects to the broker and returns the feed. Call Start to
// subscribe and begin flushing.
func NewMQTTFeed(cfg MQTTConfig, applier Applier, logger *slog.Logger) (*MQTTFeed, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Topic == "" {
		cfg.Topic = locationTopicPattern
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	return &MQTTFeed{
		cfg:          cfg,
		client:       client,
		applier:      applier,
		logger:       logger.With(slog.String("component", "mqtt_feed")),
		retained:     make(map[string]models.VehicleFix),
		shutdownChan: make(chan struct{}),
	}, nil
}

// Start subscribes to the location topic and launches the flush loop.
func (f *MQTTFeed) Start() error {
	token := f.client.Subscribe(f.cfg.Topic, 1, f.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %q: %w", f.cfg.Topic, err)
	}

	f.wg.Add(1)
	go f.flushPeriodically()
	return nil
}

// Shutdown stops the flush loop and disconnects from the broker.
func (f *MQTTFeed) Shutdown() {
	close(f.shutdownChan)
	f.wg.Wait()
	f.client.Disconnect(250)
}

func (f *MQTTFeed) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		f.logger.Warn("invalid location message",
			slog.String("topic", msg.Topic()),
			slog.String("error", err.Error()))
		return
	}
	if err := validateLocationMessage(&raw); err != nil {
		f.logger.Warn("location message failed validation",
			slog.String("topic", msg.Topic()),
			slog.String("error", err.Error()))
		return
	}

	fix := models.VehicleFix{
		VehicleID:    raw.VehicleID,
		Position:     models.LatLng{Lat: raw.Latitude, Lon: raw.Longitude},
		SpeedHintKmh: raw.SpeedKmh,
		HasSpeedHint: raw.HasSpeed,
		Status:       models.StatusIdle,
		ObservedAt:   time.Unix(raw.Timestamp, 0),
	}

	f.mu.Lock()
	prev, ok := f.retained[fix.VehicleID]
	// Out of order delivery happens on QoS 1; never regress a vehicle.
	if !ok || !fix.ObservedAt.Before(prev.ObservedAt) {
		f.retained[fix.VehicleID] = fix
	}
	f.mu.Unlock()
}

func (f *MQTTFeed) flushPeriodically() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.flush(time.Now())
		case <-f.shutdownChan:
			f.logger.Info("shutting down mqtt feed")
			return
		}
	}
}

// flush forwards the retained snapshot as one batch.
func (f *MQTTFeed) flush(now time.Time) {
	f.mu.Lock()
	fixes := make([]models.VehicleFix, 0, len(f.retained))
	for id, fix := range f.retained {
		age := now.Sub(fix.ObservedAt)
		if f.cfg.ExpireAfter > 0 && age > f.cfg.ExpireAfter {
			delete(f.retained, id)
			continue
		}
		if f.cfg.OfflineAfter > 0 && age > f.cfg.OfflineAfter {
			fix.Status = models.StatusOffline
			// Present the vehicle at its last known spot; the gate judges
			// the flush time, not the silence.
			fix.ObservedAt = now
			fix.HasSpeedHint = false
		}
		fixes = append(fixes, fix)
	}
	f.mu.Unlock()

	if len(fixes) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.FlushInterval)
	defer cancel()
	f.applier.ApplyBatch(ctx, fixes)
}

// Retained returns the number of vehicles currently in the snapshot.
func (f *MQTTFeed) Retained() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.retained)
}
