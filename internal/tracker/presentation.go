package tracker

import (
	"log/slog"
	"sort"
	"time"

	"livetrack.fleetops.io/internal/models"
)

// Marker fill colors by derived visual status.
const (
	ColorOffline = "#ef4444"
	ColorMoving  = "#10b981"
	ColorIdle    = "#6b7280"
)

// VisualStatus derives the presentation status. Upstream is authoritative
// for offline; otherwise a vehicle with any smoothed speed is moving.
func VisualStatus(upstream models.Status, speedKmh float64) models.Status {
	if upstream == models.StatusOffline {
		return models.StatusOffline
	}
	if speedKmh > 0 {
		return models.StatusMoving
	}
	return models.StatusIdle
}

func colorFor(status models.Status) string {
	switch status {
	case models.StatusOffline:
		return ColorOffline
	case models.StatusMoving:
		return ColorMoving
	default:
		return ColorIdle
	}
}

type marker struct {
	vehicleID string
	position  models.LatLng
	status    models.Status
	color     string
	speedKmh  float64
	profile   models.Profile
	updatedAt time.Time
	paints    int
}

// PositionObserver is notified once per frame for every marker whose
// painted position changed. The overlay glues itself to the selected
// marker through this hook; no shared mutable object is involved.
type PositionObserver func(vehicleID string, position models.LatLng)

// Scene owns every marker plus the single optional overlay. Markers are
// created when a vehicle first appears and released when it disappears
// from the tracked set. At most one vehicle is selected at a time.
//
// Scene is confined to the tracker's goroutine.
type Scene struct {
	logger    *slog.Logger
	clock     Clock
	markers   map[string]*marker
	selected  string
	overlay   *models.OverlayModel
	observers []PositionObserver
}

// NewScene creates an empty scene.
func NewScene(clock Clock, logger *slog.Logger) *Scene {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scene{
		logger:  logger.With(slog.String("component", "scene")),
		clock:   clock,
		markers: make(map[string]*marker),
	}
}

// OnPositionChanged registers an observer invoked whenever a marker's
// painted position changes.
func (s *Scene) OnPositionChanged(fn PositionObserver) {
	s.observers = append(s.observers, fn)
}

// HasMarker reports whether the vehicle has a marker.
func (s *Scene) HasMarker(vehicleID string) bool {
	_, ok := s.markers[vehicleID]
	return ok
}

// VehicleIDs returns the ids of all tracked vehicles.
func (s *Scene) VehicleIDs() []string {
	ids := make([]string, 0, len(s.markers))
	for id := range s.markers {
		ids = append(ids, id)
	}
	return ids
}

// EnsureMarker creates the vehicle's marker at the given position if it
// does not exist yet. New vehicles are placed directly, never animated in.
func (s *Scene) EnsureMarker(vehicleID string, position models.LatLng) {
	if _, ok := s.markers[vehicleID]; ok {
		return
	}
	s.markers[vehicleID] = &marker{
		vehicleID: vehicleID,
		position:  position,
		status:    models.StatusIdle,
		color:     ColorIdle,
		updatedAt: s.clock.Now(),
		paints:    1,
	}
}

// MarkerPosition returns the currently painted position for the vehicle.
func (s *Scene) MarkerPosition(vehicleID string) (models.LatLng, bool) {
	m, ok := s.markers[vehicleID]
	if !ok {
		return models.LatLng{}, false
	}
	return m.position, true
}

// PaintCount returns how many times the marker's color has been repainted.
func (s *Scene) PaintCount(vehicleID string) int {
	if m, ok := s.markers[vehicleID]; ok {
		return m.paints
	}
	return 0
}

// SetPosition moves the marker's painted position and notifies observers.
// The overlay follows when its vehicle is the one that moved.
func (s *Scene) SetPosition(vehicleID string, position models.LatLng) {
	m, ok := s.markers[vehicleID]
	if !ok {
		return
	}
	m.position = position
	m.updatedAt = s.clock.Now()
	if s.overlay != nil && s.selected == vehicleID {
		s.overlay.Position = position
	}
	for _, fn := range s.observers {
		fn(vehicleID, position)
	}
}

// SetStatus records the latest speed and repaints the marker color only if
// the derived visual status actually changed since the last paint.
func (s *Scene) SetStatus(vehicleID string, upstream models.Status, speedKmh float64) {
	m, ok := s.markers[vehicleID]
	if !ok {
		return
	}
	m.speedKmh = speedKmh
	m.updatedAt = s.clock.Now()
	derived := VisualStatus(upstream, speedKmh)
	if derived == m.status {
		return
	}
	m.status = derived
	m.color = colorFor(derived)
	m.paints++
}

// SetProfile attaches identity data used for marker and overlay rendering.
func (s *Scene) SetProfile(vehicleID string, profile models.Profile) {
	if m, ok := s.markers[vehicleID]; ok {
		m.profile = profile
	}
}

// Select makes the vehicle the selected one, implicitly deselecting any
// prior selection, and creates its overlay. Selecting an untracked vehicle
// is a no-op and reports false.
func (s *Scene) Select(vehicleID string) bool {
	m, ok := s.markers[vehicleID]
	if !ok {
		return false
	}
	s.selected = vehicleID
	s.overlay = &models.OverlayModel{
		VehicleID:    vehicleID,
		DriverName:   m.profile.DriverName,
		LicensePlate: m.profile.LicensePlate,
		Status:       m.status,
		SpeedKmh:     m.speedKmh,
		Position:     m.position,
	}
	return true
}

// Deselect clears the selection and destroys the overlay.
func (s *Scene) Deselect() {
	s.selected = ""
	s.overlay = nil
}

// ToggleSelect implements the marker click: select if not selected,
// deselect if it already is.
func (s *Scene) ToggleSelect(vehicleID string) {
	if s.selected == vehicleID {
		s.Deselect()
		return
	}
	s.Select(vehicleID)
}

// SelectedID returns the selected vehicle id, or "" when none.
func (s *Scene) SelectedID() string {
	return s.selected
}

// Overlay returns a copy of the visible overlay, or nil when nothing is
// selected.
func (s *Scene) Overlay() *models.OverlayModel {
	if s.overlay == nil {
		return nil
	}
	copied := *s.overlay
	return &copied
}

// RefreshOverlay re-renders the overlay content from the vehicle's current
// marker state. Called on every accepted fix for the selected vehicle.
func (s *Scene) RefreshOverlay(vehicleID string) {
	if s.overlay == nil || s.selected != vehicleID {
		return
	}
	m, ok := s.markers[vehicleID]
	if !ok {
		return
	}
	s.overlay.DriverName = m.profile.DriverName
	s.overlay.LicensePlate = m.profile.LicensePlate
	s.overlay.Status = m.status
	s.overlay.SpeedKmh = m.speedKmh
	s.overlay.Position = m.position
}

// RemoveMarker releases the vehicle's marker and, if it was selected, its
// overlay.
func (s *Scene) RemoveMarker(vehicleID string) {
	if _, ok := s.markers[vehicleID]; !ok {
		return
	}
	delete(s.markers, vehicleID)
	if s.selected == vehicleID {
		s.Deselect()
	}
}

// Len returns the number of markers in the scene.
func (s *Scene) Len() int {
	return len(s.markers)
}

// Snapshot projects the scene into externally visible marker models,
// ordered by vehicle id.
func (s *Scene) Snapshot() []models.VehicleMarker {
	out := make([]models.VehicleMarker, 0, len(s.markers))
	for id, m := range s.markers {
		out = append(out, models.VehicleMarker{
			VehicleID:    id,
			DriverName:   m.profile.DriverName,
			LicensePlate: m.profile.LicensePlate,
			PhotoURL:     m.profile.PhotoURL,
			Position:     m.position,
			Status:       m.status,
			Color:        m.color,
			SpeedKmh:     m.speedKmh,
			Selected:     id == s.selected,
			UpdatedAt:    m.updatedAt.UnixMilli(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}
