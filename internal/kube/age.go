package kube

import (
	"fmt"
	"time"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
	secondsPerMonth  = 30 * secondsPerDay
	secondsPerYear   = 12 * secondsPerMonth
)

// RelativeAge renders the time elapsed between createdAt and now as a coarse
// "N <unit> ago" string. Every tier divides the raw elapsed seconds, so a
// 90 minute age is "1 hours ago", never "1 hours 30 minutes". A createdAt in
// the future reads as "0 seconds ago".
func RelativeAge(createdAt, now time.Time) string {
	secs := int64(now.Sub(createdAt) / time.Second)
	if secs < 0 {
		secs = 0
	}

	switch {
	case secs < secondsPerMinute:
		return fmt.Sprintf("%d seconds ago", secs)
	case secs < secondsPerHour:
		return fmt.Sprintf("%d minutes ago", secs/secondsPerMinute)
	case secs < secondsPerDay:
		return fmt.Sprintf("%d hours ago", secs/secondsPerHour)
	case secs < secondsPerMonth:
		return fmt.Sprintf("%d days ago", secs/secondsPerDay)
	case secs < secondsPerYear:
		return fmt.Sprintf("%d months ago", secs/secondsPerMonth)
	default:
		return fmt.Sprintf("%d years ago", secs/secondsPerYear)
	}
}
