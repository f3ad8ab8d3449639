package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"livetrack.fleetops.io/internal/models"
	"livetrack.fleetops.io/internal/speed"
)

// Config bundles the tracker tuning.
type Config struct {
	// FreshnessWindow is the maximum fix age accepted for processing.
	FreshnessWindow time.Duration
	// FrameInterval is the animation frame period driven by Start.
	FrameInterval time.Duration
	Speed         speed.Config
	Animator      AnimatorConfig
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		FreshnessWindow: DefaultFreshnessWindow,
		FrameInterval:   33 * time.Millisecond,
		Speed:           speed.DefaultConfig(),
		Animator:        DefaultAnimatorConfig(),
	}
}

// ProfileProvider resolves driver identity for a vehicle. Implementations
// should return the zero Profile, not an error, when nothing is known.
type ProfileProvider interface {
	Lookup(ctx context.Context, vehicleID string) models.Profile
}

// FrameListener receives the full marker set after every frame in which at
// least one marker moved. Listeners run outside the tracker lock.
type FrameListener func(markers []models.VehicleMarker)

// Tracker is the live position pipeline: it gates incoming fixes by
// freshness, smooths speeds, derives visual status and animates markers
// between fixes. All state is guarded by a single mutex so batches from
// feed goroutines and reads from HTTP handlers interleave safely with the
// frame loop.
type Tracker struct {
	mu        sync.Mutex
	cfg       Config
	clock     Clock
	logger    *slog.Logger
	gate      *FreshnessGate
	estimator *speed.Estimator
	animator  *Animator
	scene     *Scene
	profiles  ProfileProvider

	// committed holds the last accepted fix position per vehicle. The
	// movement dead zone compares against this, not the animated marker
	// position, so a vehicle mid-animation is still judged by where its
	// data says it is.
	committed map[string]models.LatLng
	upstream  map[string]models.Status

	listeners []FrameListener

	fixesAccepted uint64
	fixesStale    uint64
	fixesInvalid  uint64
	lastBatchAt   time.Time

	shutdownChan chan struct{}
	wg           sync.WaitGroup
	started      bool
}

// New creates a Tracker. snapper and profiles may be nil.
func New(cfg Config, clock Clock, snapper PathSnapper, profiles ProfileProvider, logger *slog.Logger) *Tracker {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultConfig().FrameInterval
	}
	t := &Tracker{
		cfg:          cfg,
		clock:        clock,
		logger:       logger.With(slog.String("component", "tracker")),
		gate:         NewFreshnessGate(cfg.FreshnessWindow, clock),
		estimator:    speed.NewEstimator(cfg.Speed),
		animator:     NewAnimator(cfg.Animator, clock, snapper, logger),
		scene:        NewScene(clock, logger),
		profiles:     profiles,
		committed:    make(map[string]models.LatLng),
		upstream:     make(map[string]models.Status),
		shutdownChan: make(chan struct{}),
	}
	return t
}

// Subscribe registers a frame listener. Must be called before Start.
func (t *Tracker) Subscribe(fn FrameListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// ApplyBatch ingests one authoritative snapshot of the fleet. Vehicles
// absent from the batch are released; vehicles with stale or invalid fixes
// keep their current marker untouched.
func (t *Tracker) ApplyBatch(ctx context.Context, fixes []models.VehicleFix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(fixes))
	for _, fix := range fixes {
		if fix.VehicleID == "" {
			t.fixesInvalid++
			continue
		}
		if !fix.Position.Valid() {
			// A malformed fix must not take down the marker; skip it but
			// keep the vehicle tracked at its last good position.
			t.fixesInvalid++
			if t.scene.HasMarker(fix.VehicleID) {
				seen[fix.VehicleID] = true
			}
			t.logger.Warn("dropping fix with invalid coordinates",
				slog.String("vehicle_id", fix.VehicleID),
				slog.Float64("lat", fix.Position.Lat),
				slog.Float64("lon", fix.Position.Lon))
			continue
		}
		if !t.gate.IsFresh(fix.ObservedAt) {
			t.fixesStale++
			if t.scene.HasMarker(fix.VehicleID) {
				seen[fix.VehicleID] = true
			}
			continue
		}
		seen[fix.VehicleID] = true
		t.applyFix(ctx, fix)
	}

	for _, id := range t.scene.VehicleIDs() {
		if !seen[id] {
			t.release(id)
		}
	}
	t.lastBatchAt = t.clock.Now()
}

// applyFix processes one fresh, valid fix. Caller holds the lock.
func (t *Tracker) applyFix(ctx context.Context, fix models.VehicleFix) {
	t.fixesAccepted++
	id := fix.VehicleID
	t.upstream[id] = fix.Status

	if !t.scene.HasMarker(id) {
		// First sighting: place directly, no animation, and take the
		// reported speed hint since there is no history to estimate from.
		t.scene.EnsureMarker(id, fix.Position)
		t.committed[id] = fix.Position
		kmh := t.estimator.Update(id, fix.Position, fix.ObservedAt)
		if fix.HasSpeedHint {
			kmh = t.estimator.FallbackSpeed(fix.SpeedHintKmh)
		}
		t.scene.SetStatus(id, fix.Status, kmh)
		if t.profiles != nil {
			t.scene.SetProfile(id, t.profiles.Lookup(ctx, id))
		}
		return
	}

	kmh := t.estimator.Update(id, fix.Position, fix.ObservedAt)
	prev := t.committed[id]
	if from, ok := t.scene.MarkerPosition(id); ok {
		// Animate from wherever the marker is painted right now so a fix
		// arriving mid-animation does not jump back to the old endpoint.
		if t.animator.Start(id, from, fix.Position) {
			t.committed[id] = fix.Position
		} else if prev != fix.Position {
			// Inside the dead zone the marker stays put but the data
			// position still advances.
			t.committed[id] = fix.Position
		}
	}
	t.scene.SetStatus(id, fix.Status, kmh)
	t.scene.RefreshOverlay(id)
}

// release drops everything known about a vehicle. Caller holds the lock.
func (t *Tracker) release(vehicleID string) {
	t.animator.Cancel(vehicleID)
	t.scene.RemoveMarker(vehicleID)
	t.estimator.Remove(vehicleID)
	delete(t.committed, vehicleID)
	delete(t.upstream, vehicleID)
}

// Step advances all in-flight animations to the given time. Exposed for
// deterministic tests; Start drives it on a ticker in production.
func (t *Tracker) Step(now time.Time) {
	t.mu.Lock()
	moved := false
	t.animator.Step(now, func(vehicleID string, pos models.LatLng, done bool) {
		t.scene.SetPosition(vehicleID, pos)
		moved = true
	})
	var snapshot []models.VehicleMarker
	var listeners []FrameListener
	if moved && len(t.listeners) > 0 {
		snapshot = t.snapshotLocked()
		listeners = t.listeners
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Start launches the frame loop. It returns immediately; call Shutdown to
// stop.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	interval := t.cfg.FrameInterval
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		t.logger.Info("frame loop started", slog.Duration("interval", interval))
		for {
			select {
			case <-ticker.C:
				t.Step(t.clock.Now())
			case <-t.shutdownChan:
				t.logger.Info("frame loop stopped")
				return
			}
		}
	}()
}

// Shutdown stops the frame loop and waits for it to exit.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.started = false
	t.mu.Unlock()

	close(t.shutdownChan)
	t.wg.Wait()
}

// ToggleSelect selects the vehicle, or deselects it if already selected.
// It reports whether the vehicle ends up selected.
func (t *Tracker) ToggleSelect(vehicleID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scene.ToggleSelect(vehicleID)
	return t.scene.SelectedID() == vehicleID
}

// ClearSelection deselects whatever vehicle is selected.
func (t *Tracker) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scene.Deselect()
}

// Overlay returns the selected vehicle's overlay, or nil.
func (t *Tracker) Overlay() *models.OverlayModel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scene.Overlay()
}

// Marker returns the marker model for one vehicle.
func (t *Tracker) Marker(vehicleID string) (models.VehicleMarker, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.snapshotLocked() {
		if m.VehicleID == vehicleID {
			return m, true
		}
	}
	return models.VehicleMarker{}, false
}

// Snapshot returns every marker, ordered by vehicle id.
func (t *Tracker) Snapshot() []models.VehicleMarker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() []models.VehicleMarker {
	out := t.scene.Snapshot()
	for i := range out {
		out[i].Animating = t.animator.Active(out[i].VehicleID)
	}
	return out
}

// Health summarizes tracker activity for the health endpoint.
type Health struct {
	Vehicles       int       `json:"vehicles"`
	Animating      int       `json:"animating"`
	FixesAccepted  uint64    `json:"fixesAccepted"`
	FixesStale     uint64    `json:"fixesStale"`
	FixesInvalid   uint64    `json:"fixesInvalid"`
	LastBatchAt    time.Time `json:"lastBatchAt"`
	SelectedActive bool      `json:"selectedActive"`
}

// Health reports current counters.
func (t *Tracker) Health() Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Health{
		Vehicles:       t.scene.Len(),
		Animating:      t.animator.ActiveCount(),
		FixesAccepted:  t.fixesAccepted,
		FixesStale:     t.fixesStale,
		FixesInvalid:   t.fixesInvalid,
		LastBatchAt:    t.lastBatchAt,
		SelectedActive: t.scene.SelectedID() != "",
	}
}
