package service

import "time"

// IsFresh reports whether ts is at most thresholdMinutes older than now.
// Both instants are compared in UTC.
func IsFresh(ts, now time.Time, thresholdMinutes int) bool {
	if ts.IsZero() {
		return false
	}
	diff := now.UTC().Sub(ts.UTC())
	return diff <= time.Duration(thresholdMinutes)*time.Minute
}
