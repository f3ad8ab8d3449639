package models

// VehicleMarker is the externally visible projection of one tracked
// vehicle: the currently painted position plus derived visual state.
type VehicleMarker struct {
	VehicleID    string  `json:"vehicleId"`
	DriverName   string  `json:"driverName,omitempty"`
	LicensePlate string  `json:"licensePlate,omitempty"`
	PhotoURL     string  `json:"photoUrl,omitempty"`
	Position     LatLng  `json:"position"`
	Status       Status  `json:"status"`
	Color        string  `json:"color"`
	SpeedKmh     float64 `json:"speedKmh"`
	Selected     bool    `json:"selected"`
	Animating    bool    `json:"animating"`
	UpdatedAt    int64   `json:"updatedAt,omitempty"`
}

// OverlayModel is the floating detail panel for the selected vehicle.
// At most one overlay is visible at any time.
type OverlayModel struct {
	VehicleID    string  `json:"vehicleId"`
	DriverName   string  `json:"driverName"`
	LicensePlate string  `json:"licensePlate"`
	Status       Status  `json:"status"`
	SpeedKmh     float64 `json:"speedKmh"`
	Position     LatLng  `json:"position"`
}

// Profile is the optional identity data rendered on markers and overlays.
// A lookup failure yields the zero value, which renders as a placeholder.
type Profile struct {
	DriverName   string `json:"driverName"`
	LicensePlate string `json:"licensePlate"`
	PhotoURL     string `json:"photoUrl"`
}
