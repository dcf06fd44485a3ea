package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	ListDoctors(ctx context.Context) ([]Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Availability windows. Only open windows are listed; GetWindowByID
	// also returns deleted ones so callers can tell them apart.
	CreateWindow(ctx context.Context, w Window) (*Window, error)
	GetWindowByID(ctx context.Context, id uuid.UUID) (*Window, error)
	ListWindows(ctx context.Context, doctorID uuid.UUID, date *Date) ([]Window, error)
	// DeleteWindowIfIdle soft deletes an open window unless a pending,
	// accepted or completed consultation references it (ErrWindowInUse).
	DeleteWindowIfIdle(ctx context.Context, id uuid.UUID) (*Window, error)

	// Consultations
	ListConsultationsByWindow(ctx context.Context, windowID uuid.UUID) ([]Consultation, error)
	// CreateConsultation inserts only while the parent window is open and
	// reports ErrSlotUnavailable when the (window, start) key is taken.
	CreateConsultation(ctx context.Context, c Consultation) (*Consultation, error)
	GetConsultationByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	GetConsultationDetail(ctx context.Context, id uuid.UUID) (*ConsultationDetail, error)
	ListConsultationsByPatient(ctx context.Context, patientID uuid.UUID) ([]ConsultationDetail, error)
	ListConsultationsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]ConsultationDetail, error)
	// UpdateConsultationStatus is a compare-and-set: it writes to only if the
	// stored status is still from, otherwise ErrConsultationNotFound.
	UpdateConsultationStatus(ctx context.Context, id uuid.UUID, from, to ConsultationStatus) (*Consultation, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
