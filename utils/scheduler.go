package utils

import "time"

// Scheduler runs a callback once after a delay.
// Scheduled callbacks can't be cancelled.
type Scheduler interface {
	Schedule(d time.Duration, fn func())
}

type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) {
	if d <= 0 {
		go fn()
		return
	}
	time.AfterFunc(d, fn)
}
