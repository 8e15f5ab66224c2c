package domain

import "fmt"

// FindConflict returns the first appointment in existing whose slot
// intersects candidate. Cancelled appointments never conflict. Callers pass
// the appointments of the candidate's doctor on the candidate's date.
func FindConflict(candidate Interval, existing []Appointment) (Appointment, bool, error) {
	for _, e := range existing {
		if e.Status == StatusCancelled {
			continue
		}
		slot, err := e.Slot()
		if err != nil {
			return Appointment{}, false, fmt.Errorf("appointment %s: %w", e.ID, err)
		}
		if candidate.Overlaps(slot) {
			return e, true, nil
		}
	}
	return Appointment{}, false, nil
}
