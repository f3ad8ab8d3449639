// Package tracker turns streams of raw vehicle GPS fixes into smooth
// on-screen marker state.
//
// This package handles:
// - Rejecting stale fixes so markers never jump backward in time
// - Per-vehicle speed smoothing with jitter dead zones
// - Animating marker transitions along optionally road-snapped paths
// - Marker and overlay presentation with a single-selection invariant
//
// The Tracker type owns all per-vehicle state and is driven by a frame
// tick; fixes flow one way through the pipeline and no component reads
// back from the presentation layer.
package tracker
