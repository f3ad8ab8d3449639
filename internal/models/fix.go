package models

import (
	"math"
	"time"
)

// Status is the reported state of a vehicle. Upstream is authoritative for
// "offline" only; moving vs. idle is derived from the estimated speed.
type Status string

const (
	StatusMoving  Status = "moving"
	StatusIdle    Status = "idle"
	StatusOffline Status = "offline"
)

// LatLng is a WGS84 coordinate pair in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is a usable position: finite numbers
// within the WGS84 ranges.
func (p LatLng) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// VehicleFix is one reported position/status snapshot for a vehicle.
// Fixes are immutable once constructed; a newer fix for the same vehicle
// supersedes, never mutates, the previous one.
type VehicleFix struct {
	VehicleID    string    `json:"vehicleId"`
	Position     LatLng    `json:"position"`
	SpeedHintKmh float64   `json:"speedHintKmh,omitempty"`
	HasSpeedHint bool      `json:"-"`
	Status       Status    `json:"status"`
	ObservedAt   time.Time `json:"observedAt"`
}
