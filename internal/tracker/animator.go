package tracker

import (
	"context"
	"log/slog"
	"math"
	"time"

	"livetrack.fleetops.io/internal/geo"
	"livetrack.fleetops.io/internal/models"
)

// PathSnapper resolves a road-following path between two points. Lookups
// are best-effort; any error means the caller keeps the direct line.
type PathSnapper interface {
	SnapPath(ctx context.Context, from, to models.LatLng) ([]models.LatLng, error)
}

// FrameFunc receives one interpolated marker position per animation frame.
// done is true exactly once, when the task settles on its target.
type FrameFunc func(vehicleID string, position models.LatLng, done bool)

// AnimatorConfig holds the animation tuning.
type AnimatorConfig struct {
	// MinMoveMeters is the GPS dead zone: transitions shorter than this
	// are dropped entirely.
	MinMoveMeters float64
	// SnapMinMeters is the hop length above which a road-snap lookup is
	// attempted.
	SnapMinMeters float64
	// BaseDuration and MsPerMeter size the animation; MaxDuration caps it
	// for responsiveness.
	BaseDuration time.Duration
	MaxDuration  time.Duration
	MsPerMeter   float64
	// SnapTimeout bounds the road-snap lookup.
	SnapTimeout time.Duration
}

// DefaultAnimatorConfig returns the production tuning.
func DefaultAnimatorConfig() AnimatorConfig {
	return AnimatorConfig{
		MinMoveMeters: 3,
		SnapMinMeters: 10,
		BaseDuration:  400 * time.Millisecond,
		MaxDuration:   1200 * time.Millisecond,
		MsPerMeter:    15,
		SnapTimeout:   2 * time.Second,
	}
}

type animationTask struct {
	seq        uint64
	from       models.LatLng
	to         models.LatLng
	path       []models.LatLng
	startedAt  time.Time
	duration   time.Duration
	cancelSnap context.CancelFunc
}

type snappedPath struct {
	vehicleID string
	seq       uint64
	path      []models.LatLng
}

// Animator drives at most one in-flight transition per vehicle. Starting a
// new transition cancels and replaces the previous one. The animation
// always begins on the eagerly computed direct line; a road-snap result
// arriving later is applied atomically on the next frame.
//
// Start, Cancel and Step must be called from the tracker's frame
// goroutine; only the snap lookups run concurrently.
type Animator struct {
	cfg     AnimatorConfig
	clock   Clock
	snapper PathSnapper
	logger  *slog.Logger
	tasks   map[string]*animationTask
	seq     uint64
	snapCh  chan snappedPath
}

// NewAnimator creates an Animator. snapper may be nil, in which case every
// transition uses the direct line.
func NewAnimator(cfg AnimatorConfig, clock Clock, snapper PathSnapper, logger *slog.Logger) *Animator {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Animator{
		cfg:     cfg,
		clock:   clock,
		snapper: snapper,
		logger:  logger.With(slog.String("component", "animator")),
		tasks:   make(map[string]*animationTask),
		snapCh:  make(chan snappedPath, 64),
	}
}

// Start begins animating the vehicle from one position to another.
// Transitions inside the dead zone are dropped and Start reports false.
func (a *Animator) Start(vehicleID string, from, to models.LatLng) bool {
	meters := geo.DistanceMeters(from, to)
	if meters < a.cfg.MinMoveMeters {
		return false
	}

	a.Cancel(vehicleID)

	a.seq++
	task := &animationTask{
		seq:       a.seq,
		from:      from,
		to:        to,
		path:      []models.LatLng{from, to},
		startedAt: a.clock.Now(),
		duration:  a.durationFor(meters),
	}

	if a.snapper != nil && meters > a.cfg.SnapMinMeters {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.SnapTimeout)
		task.cancelSnap = cancel
		go a.lookupSnap(ctx, vehicleID, task.seq, from, to)
	}

	a.tasks[vehicleID] = task
	return true
}

func (a *Animator) lookupSnap(ctx context.Context, vehicleID string, seq uint64, from, to models.LatLng) {
	path, err := a.snapper.SnapPath(ctx, from, to)
	if err != nil || len(path) < 2 {
		if err != nil {
			a.logger.Debug("road snap unavailable, keeping direct path",
				slog.String("vehicle_id", vehicleID),
				slog.String("error", err.Error()))
		}
		return
	}
	select {
	case a.snapCh <- snappedPath{vehicleID: vehicleID, seq: seq, path: path}:
	default:
		// Frame loop is behind; the direct line is good enough.
	}
}

func (a *Animator) durationFor(meters float64) time.Duration {
	d := a.cfg.BaseDuration + time.Duration(meters*a.cfg.MsPerMeter*float64(time.Millisecond))
	if d > a.cfg.MaxDuration {
		d = a.cfg.MaxDuration
	}
	return d
}

// Cancel stops any in-flight transition for the vehicle without emitting a
// final frame.
func (a *Animator) Cancel(vehicleID string) {
	task, ok := a.tasks[vehicleID]
	if !ok {
		return
	}
	if task.cancelSnap != nil {
		task.cancelSnap()
	}
	delete(a.tasks, vehicleID)
}

// Active reports whether the vehicle has an in-flight transition.
func (a *Animator) Active(vehicleID string) bool {
	_, ok := a.tasks[vehicleID]
	return ok
}

// ActiveCount returns the number of in-flight transitions.
func (a *Animator) ActiveCount() int {
	return len(a.tasks)
}

func easeOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}

// Step advances every in-flight transition to the given time, emitting one
// interpolated position per task. Completed tasks snap exactly to their
// target and are cleared. Snap results that resolved since the previous
// frame are applied first, but only to the task generation that requested
// them.
func (a *Animator) Step(now time.Time, emit FrameFunc) {
drain:
	for {
		select {
		case sp := <-a.snapCh:
			if task, ok := a.tasks[sp.vehicleID]; ok && task.seq == sp.seq {
				task.path = sp.path
			}
		default:
			break drain
		}
	}

	for vehicleID, task := range a.tasks {
		elapsed := now.Sub(task.startedAt)
		progress := float64(elapsed) / float64(task.duration)
		if progress >= 1 {
			if task.cancelSnap != nil {
				task.cancelSnap()
			}
			delete(a.tasks, vehicleID)
			emit(vehicleID, task.to, true)
			continue
		}
		if progress < 0 {
			progress = 0
		}
		emit(vehicleID, geo.PointAlongPath(task.path, easeOutCubic(progress)), false)
	}
}
