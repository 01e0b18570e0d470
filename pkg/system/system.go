package system

import (
	"time"
)

var StartTime = time.Now()

func InitStartTime() {
	StartTime = time.Now()
}

func Uptime() int64 {
	uptime := time.Since(StartTime)
	return int64(uptime.Seconds())
}

// Clock reports time elapsed since some fixed origin. History samples are
// stamped with it so they never depend on wall clock jumps.
type Clock interface {
	Elapsed() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a Clock whose origin is the moment of the call.
func NewClock() Clock {
	return monotonicClock{start: time.Now()}
}

func (c monotonicClock) Elapsed() time.Duration {
	return time.Since(c.start)
}
