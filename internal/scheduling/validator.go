package scheduling

import "fmt"

// overlaps reports whether [a,b) and [c,d) intersect.
func overlaps(a, b, c, d Clock) bool {
	return a < d && c < b
}

// ValidateBooking decides whether [start,end) can be booked on w given the
// consultations already recorded against it. It returns nil to accept, or
// ErrInvalidRange, ErrOutsideWindow or ErrSlotUnavailable, checked in that
// order.
func ValidateBooking(w Window, start, end Clock, existing []Consultation) error {
	if start >= end {
		return fmt.Errorf("%w: %s-%s", ErrInvalidRange, start, end)
	}
	if !w.Contains(start, end) {
		return fmt.Errorf("%w: %s-%s not within %s-%s", ErrOutsideWindow, start, end, w.Start, w.End)
	}
	for _, c := range existing {
		if c.WindowID != w.ID || !c.Blocks() {
			continue
		}
		if overlaps(start, end, c.Start, c.End) {
			return fmt.Errorf("%w: %s-%s is taken", ErrSlotUnavailable, c.Start, c.End)
		}
	}
	return nil
}

// markTaken flips Available off for slots overlapping a blocking consultation.
func markTaken(slots []Slot, existing []Consultation) {
	for i := range slots {
		for _, c := range existing {
			if c.WindowID == slots[i].Key.WindowID && c.Blocks() && overlaps(slots[i].Start, slots[i].End, c.Start, c.End) {
				slots[i].Available = false
				break
			}
		}
	}
}
