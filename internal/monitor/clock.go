package monitor

import "time"

// Clock is the loop's tick source. Tests substitute a synchronous
// implementation so cycles can be driven without wall-clock delay.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall-clock implementation used in production.
func RealClock() Clock { return realClock{} }
