package domain

import "time"

// Incident status values. Upstream sometimes supplies an explicit status
// string, which is preserved as-is; these constants cover the derived case.
const (
	StatusOngoing  = "ONGOING"
	StatusUpcoming = "UPCOMING"
	StatusUnknown  = "UNKNOWN"
)

// DeriveStatus classifies an incident from its time window. The evaluation
// instant is injected so the function stays pure and testable:
//
//   - start in the future: UPCOMING
//   - started (or no start) and not yet ended (or no end): ONGOING
//   - otherwise (ended): UNKNOWN
func DeriveStatus(start, end *time.Time, now time.Time) string {
	if start != nil && start.After(now) {
		return StatusUpcoming
	}
	if end == nil || end.After(now) {
		return StatusOngoing
	}
	return StatusUnknown
}
