// Package localtime estimates a station's local wall-clock time from its
// longitude. Pure functions; the host decides when to recompute.
package localtime

import (
	"math"
	"time"
)

// Display formats the estimated local time at the given longitude using the
// rough one-timezone-per-15-degrees rule. Good enough for a "what time is it
// there" display; not a real timezone lookup.
func Display(now time.Time, lon float64) string {
	offsetHours := int(math.Round(lon / 15))
	return now.UTC().Add(time.Duration(offsetHours) * time.Hour).Format("15:04:05")
}

// DisplayLocal formats the host's own local time, used when a station has
// no coordinates.
func DisplayLocal(now time.Time) string {
	return now.Format("15:04:05")
}
