// Package speed maintains per-vehicle exponentially smoothed speed
// estimates from raw GPS fixes, suppressing jitter with distance and time
// dead zones.
package speed

import (
	"time"

	"livetrack.fleetops.io/internal/geo"
	"livetrack.fleetops.io/internal/models"
)

// Config holds the smoothing constants. The defaults are tuned for
// responsiveness over stability; treat them as empirical values rather
// than re-deriving them.
type Config struct {
	// MinInterval debounces near-simultaneous updates.
	MinInterval time.Duration
	// DeadZoneKm is the distance below which movement is treated as noise.
	DeadZoneKm float64
	// DecayFactor multiplies the smoothed speed on each no-movement update.
	DecayFactor float64
	// DecayFloorKmh snaps a decaying speed to zero once it drops below this.
	DecayFloorKmh float64
	// BlendNewWeight is the weight given to the new instantaneous sample.
	BlendNewWeight float64
	// MinSpeedKmh clamps a freshly blended speed to zero below this.
	MinSpeedKmh float64
	// MphCutoverKmh is the unit-mismatch heuristic for upstream speed
	// hints: magnitudes above it are assumed to be mph.
	MphCutoverKmh float64
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		MinInterval:    500 * time.Millisecond,
		DeadZoneKm:     0.002,
		DecayFactor:    0.8,
		DecayFloorKmh:  0.3,
		BlendNewWeight: 0.7,
		MinSpeedKmh:    0.2,
		MphCutoverKmh:  200,
	}
}

const mphToKmh = 1.60934

type vehicleState struct {
	smoothedKmh  float64
	lastPosition models.LatLng
	lastObserved time.Time
}

// Estimator keeps smoothing state per vehicle. It is not safe for
// concurrent use; the tracker drives it from a single goroutine.
type Estimator struct {
	cfg      Config
	vehicles map[string]*vehicleState
}

// NewEstimator creates an Estimator with the given tuning.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg, vehicles: make(map[string]*vehicleState)}
}

// Known reports whether smoothing history exists for the vehicle.
func (e *Estimator) Known(vehicleID string) bool {
	_, ok := e.vehicles[vehicleID]
	return ok
}

// Speed returns the current smoothed speed without advancing state.
func (e *Estimator) Speed(vehicleID string) float64 {
	if st, ok := e.vehicles[vehicleID]; ok {
		return st.smoothedKmh
	}
	return 0
}

// Update feeds one accepted fix into the vehicle's smoothing state and
// returns the new smoothed speed in km/h. The result is always finite and
// non-negative.
func (e *Estimator) Update(vehicleID string, position models.LatLng, observedAt time.Time) float64 {
	st, ok := e.vehicles[vehicleID]
	if !ok {
		e.vehicles[vehicleID] = &vehicleState{
			lastPosition: position,
			lastObserved: observedAt,
		}
		return 0
	}

	elapsed := observedAt.Sub(st.lastObserved)
	if elapsed < e.cfg.MinInterval {
		return st.smoothedKmh
	}

	distanceKm := geo.HaversineKm(st.lastPosition.Lat, st.lastPosition.Lon, position.Lat, position.Lon)

	if distanceKm < e.cfg.DeadZoneKm {
		// No real movement: only decay is possible.
		if st.smoothedKmh > 0 {
			decayed := st.smoothedKmh * e.cfg.DecayFactor
			if decayed < e.cfg.DecayFloorKmh {
				decayed = 0
			}
			st.smoothedKmh = decayed
		}
		st.lastPosition = position
		st.lastObserved = observedAt
		return st.smoothedKmh
	}

	instantKmh := distanceKm / (elapsed.Seconds() / 3600)
	smoothed := st.smoothedKmh*(1-e.cfg.BlendNewWeight) + instantKmh*e.cfg.BlendNewWeight
	if smoothed < e.cfg.MinSpeedKmh {
		smoothed = 0
	}
	st.smoothedKmh = smoothed
	st.lastPosition = position
	st.lastObserved = observedAt
	return st.smoothedKmh
}

// FallbackSpeed normalizes an upstream speed hint used before any
// smoothing history exists. Values above the mph cutover are assumed to be
// mph and converted to km/h.
func (e *Estimator) FallbackSpeed(hint float64) float64 {
	if hint <= 0 {
		return 0
	}
	if hint > e.cfg.MphCutoverKmh {
		return hint * mphToKmh
	}
	return hint
}

// Remove discards the vehicle's smoothing state.
func (e *Estimator) Remove(vehicleID string) {
	delete(e.vehicles, vehicleID)
}

// Len returns the number of vehicles with smoothing state.
func (e *Estimator) Len() int {
	return len(e.vehicles)
}
