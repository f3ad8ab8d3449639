package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"livetrack.fleetops.io/internal/models"
)

// fakeClock is a manually advanced clock for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// stubSnapper returns a canned path or error and counts calls.
type stubSnapper struct {
	mu    sync.Mutex
	path  []models.LatLng
	err   error
	calls int
}

func (s *stubSnapper) SnapPath(_ context.Context, from, to models.LatLng) ([]models.LatLng, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.path != nil {
		return s.path, nil
	}
	return []models.LatLng{from, to}, nil
}

func (s *stubSnapper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errSnapDown = errors.New("routing service unavailable")

type stubProfiles struct {
	byID map[string]models.Profile
}

func (p *stubProfiles) Lookup(_ context.Context, vehicleID string) models.Profile {
	return p.byID[vehicleID]
}

func fix(id string, pos models.LatLng, status models.Status, at time.Time) models.VehicleFix {
	return models.VehicleFix{VehicleID: id, Position: pos, Status: status, ObservedAt: at}
}
