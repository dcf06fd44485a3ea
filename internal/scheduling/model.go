package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type ConsultationStatus string

const (
	StatusPending   ConsultationStatus = "pending"
	StatusAccepted  ConsultationStatus = "accepted"
	StatusRejected  ConsultationStatus = "rejected"
	StatusCompleted ConsultationStatus = "completed"
)

// Terminal reports whether no further transition can leave the status.
func (s ConsultationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Valid reports whether s is one of the known statuses.
func (s ConsultationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

type WindowStatus string

const (
	WindowOpen    WindowStatus = "open"
	WindowDeleted WindowStatus = "deleted"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Caller is the authenticated identity performing an operation.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Specialization string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Window is a doctor-declared availability range on a single date.
type Window struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      Date
	Start     Clock
	End       Clock
	Status    WindowStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether [start,end) lies inside the window.
func (w Window) Contains(start, end Clock) bool {
	return start >= w.Start && end <= w.End
}

type Consultation struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	WindowID      uuid.UUID
	Start         Clock
	End           Clock
	Reason        string
	Description   string
	AttachmentRef string
	Status        ConsultationStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Blocks reports whether the consultation still occupies its time range.
// Rejected requests free the range for other patients.
func (c Consultation) Blocks() bool {
	return c.Status != StatusRejected
}

// ConsultationDetail is a consultation joined with its window and parties,
// the shape both the patient status page and the doctor request list show.
type ConsultationDetail struct {
	Consultation
	Window  Window
	Doctor  Doctor
	Patient Patient
}

type EventLog struct {
	ID             int64
	EventType      string
	ConsultationID *uuid.UUID
	WindowID       *uuid.UUID
	Payload        []byte
	CreatedAt      time.Time
}
