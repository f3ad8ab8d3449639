package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"livetrack.fleetops.io/internal/models"
)

var (
	depotPos = models.LatLng{Lat: 14.5995, Lon: 120.9842}
	// ~14 m north of the depot, far enough to animate and road-snap.
	streetPos = models.LatLng{Lat: 14.59963, Lon: 120.9842}
	// ~55 m north, long enough to hit the duration cap.
	avenuePos = models.LatLng{Lat: 14.6000, Lon: 120.9842}
)

func newTestTracker(t *testing.T, snapper PathSnapper) (*Tracker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	profiles := &stubProfiles{byID: map[string]models.Profile{
		"jeep-01": {DriverName: "R. Santos", LicensePlate: "NBC 1234"},
	}}
	return New(DefaultConfig(), clock, snapper, profiles, nil), clock
}

func markerOf(t *testing.T, tr *Tracker, id string) models.VehicleMarker {
	t.Helper()
	m, ok := tr.Marker(id)
	require.True(t, ok, "vehicle %s not tracked", id)
	return m
}

func TestNewVehicleAppearsWithoutAnimation(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, clock.Now())})

	m := markerOf(t, tr, "jeep-01")
	assert.Equal(t, depotPos, m.Position)
	assert.Equal(t, models.StatusIdle, m.Status)
	assert.Equal(t, ColorIdle, m.Color)
	assert.False(t, m.Animating)
	assert.Equal(t, "R. Santos", m.DriverName)
}

func TestVehicleLifecycleThroughMoveAndStop(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()
	start := clock.Now()

	// First sighting at the depot: idle, placed directly.
	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, start)})
	assert.Equal(t, 0.0, markerOf(t, tr, "jeep-01").SpeedKmh)

	// One second later it has moved ~14 m: it becomes moving and an
	// animation toward the new position begins.
	clock.Advance(time.Second)
	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", streetPos, models.StatusIdle, clock.Now())})
	m := markerOf(t, tr, "jeep-01")
	assert.Equal(t, models.StatusMoving, m.Status)
	assert.Equal(t, ColorMoving, m.Color)
	assert.Greater(t, m.SpeedKmh, 20.0)
	assert.True(t, m.Animating)
	assert.Equal(t, depotPos, m.Position, "marker moves only on frames")

	// Frames carry it to the exact reported position.
	tr.Step(clock.Now().Add(700 * time.Millisecond))
	m = markerOf(t, tr, "jeep-01")
	assert.Equal(t, streetPos, m.Position)
	assert.False(t, m.Animating)

	// The vehicle parks: identical fixes decay the speed to zero and the
	// marker turns idle without ever animating again.
	for i := 0; i < 40; i++ {
		clock.Advance(time.Second)
		tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", streetPos, models.StatusIdle, clock.Now())})
	}
	m = markerOf(t, tr, "jeep-01")
	assert.Equal(t, 0.0, m.SpeedKmh)
	assert.Equal(t, models.StatusIdle, m.Status)
	assert.False(t, m.Animating)
}

func TestStaleFixKeepsMarkerInPlace(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, clock.Now())})

	// A 40 second old fix is beyond the freshness window: the position is
	// ignored but the vehicle stays tracked.
	clock.Advance(time.Second)
	old := clock.Now().Add(-40 * time.Second)
	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", avenuePos, models.StatusIdle, old)})

	m := markerOf(t, tr, "jeep-01")
	assert.Equal(t, depotPos, m.Position)
	assert.False(t, m.Animating)
	assert.Equal(t, uint64(1), tr.Health().FixesStale)
}

func TestStaleFixNeverCreatesAVehicle(t *testing.T) {
	tr, clock := newTestTracker(t, nil)

	old := clock.Now().Add(-time.Minute)
	tr.ApplyBatch(context.Background(), []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, old)})

	_, ok := tr.Marker("jeep-01")
	assert.False(t, ok)
}

func TestInvalidCoordinatesAreDroppedNotFatal(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, clock.Now())})

	clock.Advance(time.Second)
	bad := models.VehicleFix{
		VehicleID:  "jeep-01",
		Position:   models.LatLng{Lat: 295.0, Lon: 120.9842},
		Status:     models.StatusIdle,
		ObservedAt: clock.Now(),
	}
	tr.ApplyBatch(ctx, []models.VehicleFix{bad})

	m := markerOf(t, tr, "jeep-01")
	assert.Equal(t, depotPos, m.Position)
	assert.Equal(t, uint64(1), tr.Health().FixesInvalid)
}

func TestAbsentVehicleIsReleased(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{
		fix("jeep-01", depotPos, models.StatusIdle, clock.Now()),
		fix("jeep-02", avenuePos, models.StatusIdle, clock.Now()),
	})
	require.Equal(t, 2, tr.Health().Vehicles)

	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-02", avenuePos, models.StatusIdle, clock.Now())})

	_, ok := tr.Marker("jeep-01")
	assert.False(t, ok)
	assert.Equal(t, 1, tr.Health().Vehicles)
}

func TestRapidFixesEndAtLatestTarget(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, clock.Now())})

	// Two fixes land between frames; only one animation may be in flight
	// and it must settle on the newest position.
	clock.Advance(time.Second)
	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", streetPos, models.StatusIdle, clock.Now())})
	clock.Advance(time.Second)
	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", avenuePos, models.StatusIdle, clock.Now())})
	assert.Equal(t, 1, tr.Health().Animating)

	tr.Step(clock.Now().Add(2 * time.Second))
	assert.Equal(t, avenuePos, markerOf(t, tr, "jeep-01").Position)
}

func TestSnapOutageStillLandsOnTarget(t *testing.T) {
	snapper := &stubSnapper{err: errSnapDown}
	tr, clock := newTestTracker(t, snapper)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, clock.Now())})
	clock.Advance(time.Second)
	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", avenuePos, models.StatusIdle, clock.Now())})

	deadline := time.Now().Add(time.Second)
	for snapper.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Greater(t, snapper.callCount(), 0)

	tr.Step(clock.Now().Add(1300 * time.Millisecond))
	assert.Equal(t, avenuePos, markerOf(t, tr, "jeep-01").Position)
}

func TestOfflineStatusWinsOverSpeed(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, clock.Now())})
	clock.Advance(time.Second)
	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", streetPos, models.StatusOffline, clock.Now())})

	m := markerOf(t, tr, "jeep-01")
	assert.Equal(t, models.StatusOffline, m.Status)
	assert.Equal(t, ColorOffline, m.Color)
}

func TestSpeedHintUsedForFirstSighting(t *testing.T) {
	tr, clock := newTestTracker(t, nil)

	f := fix("jeep-01", depotPos, models.StatusIdle, clock.Now())
	f.SpeedHintKmh = 250 // an mph feed slipped through; the heuristic converts
	f.HasSpeedHint = true
	tr.ApplyBatch(context.Background(), []models.VehicleFix{f})

	m := markerOf(t, tr, "jeep-01")
	assert.InDelta(t, 402.3, m.SpeedKmh, 0.1)
	assert.Equal(t, models.StatusMoving, m.Status)
}

func TestToggleSelectAndOverlay(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{
		fix("jeep-01", depotPos, models.StatusIdle, clock.Now()),
		fix("jeep-02", avenuePos, models.StatusIdle, clock.Now()),
	})

	assert.True(t, tr.ToggleSelect("jeep-01"))
	ov := tr.Overlay()
	require.NotNil(t, ov)
	assert.Equal(t, "jeep-01", ov.VehicleID)
	assert.Equal(t, "R. Santos", ov.DriverName)

	// Selecting the other vehicle swaps the single overlay.
	assert.True(t, tr.ToggleSelect("jeep-02"))
	assert.Equal(t, "jeep-02", tr.Overlay().VehicleID)

	// Second click deselects.
	assert.False(t, tr.ToggleSelect("jeep-02"))
	assert.Nil(t, tr.Overlay())
}

func TestOverlayTracksFreshFixes(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, clock.Now())})
	require.True(t, tr.ToggleSelect("jeep-01"))

	clock.Advance(time.Second)
	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", streetPos, models.StatusIdle, clock.Now())})
	tr.Step(clock.Now().Add(time.Second))

	ov := tr.Overlay()
	require.NotNil(t, ov)
	assert.Equal(t, models.StatusMoving, ov.Status)
	assert.Equal(t, streetPos, ov.Position)
}

func TestFrameListenersRunOnMovement(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	var frames [][]models.VehicleMarker
	tr.Subscribe(func(markers []models.VehicleMarker) {
		frames = append(frames, markers)
	})

	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", depotPos, models.StatusIdle, clock.Now())})
	tr.Step(clock.Now())
	assert.Empty(t, frames, "no animation, no frame broadcast")

	clock.Advance(time.Second)
	tr.ApplyBatch(ctx, []models.VehicleFix{fix("jeep-01", streetPos, models.StatusIdle, clock.Now())})
	tr.Step(clock.Now().Add(300 * time.Millisecond))
	require.Len(t, frames, 1)
	assert.Equal(t, "jeep-01", frames[0][0].VehicleID)
}

func TestStartAndShutdownAreIdempotent(t *testing.T) {
	tr, _ := newTestTracker(t, nil)

	tr.Start()
	tr.Start()
	tr.Shutdown()
	tr.Shutdown()
}

func TestHealthCounters(t *testing.T) {
	tr, clock := newTestTracker(t, nil)
	ctx := context.Background()

	tr.ApplyBatch(ctx, []models.VehicleFix{
		fix("jeep-01", depotPos, models.StatusIdle, clock.Now()),
		fix("jeep-02", avenuePos, models.StatusIdle, clock.Now().Add(-time.Minute)),
	})

	h := tr.Health()
	assert.Equal(t, 1, h.Vehicles)
	assert.Equal(t, uint64(1), h.FixesAccepted)
	assert.Equal(t, uint64(1), h.FixesStale)
	assert.Equal(t, clock.Now(), h.LastBatchAt)
	assert.False(t, h.SelectedActive)
}
