package models

import "time"

// IsLate compares an actual delivery to the promised day. A delivery any time on the
// promised day is on time. Nil when either side is unknown.
func IsLate(actual, promised *time.Time) *bool {
	if actual == nil || promised == nil {
		return nil
	}
	p := promised.UTC()
	endOfDay := time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	late := !actual.UTC().Before(endOfDay)
	return &late
}
