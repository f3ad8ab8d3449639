package tracker

import "time"

// Clock abstracts time so the frame loop and freshness gate are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the Clock used outside of tests.
var SystemClock Clock = systemClock{}
