package liveview

import "time"

// Timer is a pending delayed continuation.
type Timer interface {
	Stop() bool
}

// Scheduler starts delayed continuations.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

var timeNow = func() time.Time {
	return time.Now()
}
