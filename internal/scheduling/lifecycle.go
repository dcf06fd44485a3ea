package scheduling

import (
	"fmt"
	"strings"
)

type Event string

const (
	EventAccept   Event = "accept"
	EventReject   Event = "reject"
	EventComplete Event = "complete"
)

// ParseEvent accepts an event name or the status it leads to, case
// insensitively ("accept", "Accepted", ...).
func ParseEvent(s string) (Event, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "accepted":
		return EventAccept, nil
	case "reject", "rejected":
		return EventReject, nil
	case "complete", "completed":
		return EventComplete, nil
	}
	return "", fmt.Errorf("%w: unknown status event %q", ErrInvalidInput, s)
}

type transition struct {
	from ConsultationStatus
	to   ConsultationStatus
}

var transitions = map[Event]transition{
	EventAccept:   {from: StatusPending, to: StatusAccepted},
	EventReject:   {from: StatusPending, to: StatusRejected},
	EventComplete: {from: StatusAccepted, to: StatusCompleted},
}

// Transition returns the status ev leads to from current, or
// ErrInvalidTransition when current is not the required predecessor.
func Transition(current ConsultationStatus, ev Event) (ConsultationStatus, error) {
	t, ok := transitions[ev]
	if !ok {
		return current, fmt.Errorf("%w: unknown event %q", ErrInvalidInput, ev)
	}
	if current != t.from {
		return current, fmt.Errorf("%w: cannot %s a %s consultation", ErrInvalidTransition, ev, current)
	}
	return t.to, nil
}

// AuthorizeTransition checks the caller is the doctor the consultation was
// requested from.
func AuthorizeTransition(c Consultation, caller Caller) error {
	if caller.Role != RoleDoctor || caller.ID != c.DoctorID {
		return fmt.Errorf("%w: only the consultation's doctor can change its status", ErrUnauthorized)
	}
	return nil
}

func (e Event) eventType() string {
	switch e {
	case EventAccept:
		return EventConsultationAccepted
	case EventReject:
		return EventConsultationRejected
	default:
		return EventConsultationCompleted
	}
}
