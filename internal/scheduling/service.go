package scheduling

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/consultation-scheduling/internal/notify"
	redisclient "github.com/hackgods/consultation-scheduling/internal/redis"
)

const (
	EventWindowCreated         = "WINDOW_CREATED"
	EventWindowDeleted         = "WINDOW_DELETED"
	EventConsultationRequested = "CONSULTATION_REQUESTED"
	EventConsultationAccepted  = "CONSULTATION_ACCEPTED"
	EventConsultationRejected  = "CONSULTATION_REJECTED"
	EventConsultationCompleted = "CONSULTATION_COMPLETED"
)

// Notifications is the fire-and-forget notification boundary.
type Notifications interface {
	Dispatch(ctx context.Context, msg notify.Message)
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifications
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifications) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
	}
}

// BookingRequest carries everything a patient submits for a consultation.
type BookingRequest struct {
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	WindowID      uuid.UUID
	Start         Clock
	End           Clock
	Reason        string
	Description   string
	AttachmentRef string
}

func (r BookingRequest) checkFields() error {
	switch {
	case strings.TrimSpace(r.Reason) == "":
		return missingField("reason")
	case strings.TrimSpace(r.Description) == "":
		return missingField("description")
	case strings.TrimSpace(r.AttachmentRef) == "":
		return missingField("attachment")
	case r.WindowID == uuid.Nil:
		return missingField("window_id")
	case r.DoctorID == uuid.Nil:
		return missingField("doctor_id")
	}
	return nil
}

// ListDoctors returns every registered doctor.
func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, storeErr("list doctors", err)
	}
	return doctors, nil
}

// ListWindows returns a doctor's open windows, optionally limited to one date.
func (s *Service) ListWindows(ctx context.Context, doctorID uuid.UUID, date *Date) ([]Window, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, storeErr("load doctor", err)
	}

	windows, err := s.repo.ListWindows(ctx, doctorID, date)
	if err != nil {
		return nil, storeErr("list windows", err)
	}
	return windows, nil
}

// CreateWindow declares a new availability window for the calling doctor.
func (s *Service) CreateWindow(ctx context.Context, caller Caller, doctorID uuid.UUID, date Date, start, end Clock) (*Window, error) {
	if date.IsZero() {
		return nil, missingField("date")
	}
	if start >= end {
		return nil, fmt.Errorf("%w: %s-%s", ErrInvalidRange, start, end)
	}
	if caller.Role != RoleDoctor || caller.ID != doctorID {
		return nil, fmt.Errorf("%w: doctors can only declare their own availability", ErrUnauthorized)
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, storeErr("load doctor", err)
	}

	w, err := s.repo.CreateWindow(ctx, Window{
		DoctorID: doctorID,
		Date:     date,
		Start:    start,
		End:      end,
	})
	if err != nil {
		return nil, storeErr("create window", err)
	}

	s.logEvent(ctx, EventLog{EventType: EventWindowCreated, WindowID: &w.ID}, map[string]any{
		"doctor_id": doctorID.String(),
		"date":      date.String(),
		"start":     start.String(),
		"end":       end.String(),
	})

	return w, nil
}

// DeleteWindow removes an open window owned by the caller. Windows still
// referenced by a pending, accepted or completed consultation are kept and
// ErrWindowInUse is returned.
func (s *Service) DeleteWindow(ctx context.Context, caller Caller, windowID uuid.UUID) error {
	w, err := s.repo.GetWindowByID(ctx, windowID)
	if err != nil {
		return storeErr("load window", err)
	}
	if w.Status != WindowOpen {
		return ErrWindowNotFound
	}
	if caller.Role != RoleDoctor || caller.ID != w.DoctorID {
		return fmt.Errorf("%w: window belongs to another doctor", ErrUnauthorized)
	}

	if _, err := s.repo.DeleteWindowIfIdle(ctx, windowID); err != nil {
		return storeErr("delete window", err)
	}

	s.logEvent(ctx, EventLog{EventType: EventWindowDeleted, WindowID: &windowID}, map[string]any{
		"doctor_id": w.DoctorID.String(),
	})

	return nil
}

// ListSlots decomposes every open window of the doctor on date into bookable
// slots ordered by start time. Slots overlapping a live consultation are
// returned with Available set to false.
func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID, date Date) ([]Slot, error) {
	windows, err := s.ListWindows(ctx, doctorID, &date)
	if err != nil {
		return nil, err
	}

	slots := []Slot{}
	for _, w := range windows {
		generated := slices.Collect(GenerateSlots(w, SlotGranularity))
		if len(generated) == 0 {
			continue
		}

		existing, err := s.repo.ListConsultationsByWindow(ctx, w.ID)
		if err != nil {
			return nil, storeErr("list consultations", err)
		}
		markTaken(generated, existing)

		slots = append(slots, generated...)
	}

	slices.SortStableFunc(slots, func(a, b Slot) int {
		return cmp.Compare(a.Start, b.Start)
	})

	return slots, nil
}

// SubmitBooking validates a booking against the window and the consultations
// already on it and, if accepted, stores a pending consultation.
// The read of existing consultations and the insert run under a per window
// lock; the store's unique (window, start) index backs it up.
func (s *Service) SubmitBooking(ctx context.Context, caller Caller, req BookingRequest) (*Consultation, error) {
	if err := req.checkFields(); err != nil {
		return nil, err
	}
	if req.Start >= req.End {
		return nil, fmt.Errorf("%w: %s-%s", ErrInvalidRange, req.Start, req.End)
	}
	if caller.Role != RolePatient || caller.ID != req.PatientID {
		return nil, fmt.Errorf("%w: patients can only book for themselves", ErrUnauthorized)
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, storeErr("load patient", err)
	}

	window, err := s.repo.GetWindowByID(ctx, req.WindowID)
	if err != nil {
		return nil, storeErr("load window", err)
	}
	if window.Status != WindowOpen || window.DoctorID != req.DoctorID {
		return nil, ErrWindowNotFound
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		return nil, storeErr("load doctor", err)
	}

	var created *Consultation

	err = s.locker.WithWindowLock(ctx, window.ID, func(lockCtx context.Context) error {
		existing, err := s.repo.ListConsultationsByWindow(lockCtx, window.ID)
		if err != nil {
			return storeErr("list consultations", err)
		}

		if err := ValidateBooking(*window, req.Start, req.End, existing); err != nil {
			return err
		}

		c, err := s.repo.CreateConsultation(lockCtx, Consultation{
			PatientID:     req.PatientID,
			DoctorID:      req.DoctorID,
			WindowID:      window.ID,
			Start:         req.Start,
			End:           req.End,
			Reason:        strings.TrimSpace(req.Reason),
			Description:   strings.TrimSpace(req.Description),
			AttachmentRef: req.AttachmentRef,
			Status:        StatusPending,
		})
		if err != nil {
			return storeErr("create consultation", err)
		}

		created = c
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrWindowBusy
		}
		return nil, storeErr("submit booking", err)
	}

	s.logEvent(ctx, EventLog{EventType: EventConsultationRequested, ConsultationID: &created.ID, WindowID: &window.ID}, map[string]any{
		"patient_id": req.PatientID.String(),
		"doctor_id":  req.DoctorID.String(),
		"start":      req.Start.String(),
		"end":        req.End.String(),
	})

	s.notifier.Dispatch(ctx, notify.Message{
		To:      doctor.Email,
		Subject: "New consultation request",
		Body: fmt.Sprintf("<p>You have a new consultation request on %s from %s to %s.</p><p>Reason: %s</p>",
			window.Date, req.Start, req.End, created.Reason),
	})

	return created, nil
}

// ListConsultations returns the caller's consultations: the ones a patient
// booked, or the requests addressed to a doctor.
func (s *Service) ListConsultations(ctx context.Context, caller Caller) ([]ConsultationDetail, error) {
	var (
		list []ConsultationDetail
		err  error
	)

	switch caller.Role {
	case RolePatient:
		list, err = s.repo.ListConsultationsByPatient(ctx, caller.ID)
	case RoleDoctor:
		list, err = s.repo.ListConsultationsByDoctor(ctx, caller.ID)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, caller.Role)
	}
	if err != nil {
		return nil, storeErr("list consultations", err)
	}
	if list == nil {
		list = []ConsultationDetail{}
	}
	return list, nil
}

// GetConsultation returns one consultation to its patient or doctor.
func (s *Service) GetConsultation(ctx context.Context, caller Caller, id uuid.UUID) (*ConsultationDetail, error) {
	detail, err := s.repo.GetConsultationDetail(ctx, id)
	if err != nil {
		return nil, storeErr("get consultation", err)
	}
	if caller.ID != detail.PatientID && caller.ID != detail.DoctorID {
		return nil, fmt.Errorf("%w: consultation belongs to other parties", ErrUnauthorized)
	}
	return detail, nil
}

// TransitionStatus applies ev to the consultation on behalf of its doctor.
// The stored status is compared-and-set, so of two concurrent transitions
// from the same state only one succeeds.
func (s *Service) TransitionStatus(ctx context.Context, caller Caller, id uuid.UUID, ev Event) (*Consultation, error) {
	if _, ok := transitions[ev]; !ok {
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidInput, ev)
	}

	c, err := s.repo.GetConsultationByID(ctx, id)
	if err != nil {
		return nil, storeErr("load consultation", err)
	}

	if err := AuthorizeTransition(*c, caller); err != nil {
		return nil, err
	}

	to, err := Transition(c.Status, ev)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateConsultationStatus(ctx, id, c.Status, to)
	if err != nil {
		if errors.Is(err, ErrConsultationNotFound) {
			return nil, fmt.Errorf("%w: status changed concurrently from %s", ErrInvalidTransition, c.Status)
		}
		return nil, storeErr("update consultation status", err)
	}

	s.logEvent(ctx, EventLog{EventType: ev.eventType(), ConsultationID: &updated.ID, WindowID: &updated.WindowID}, map[string]any{
		"from":      string(c.Status),
		"to":        string(to),
		"doctor_id": caller.ID.String(),
	})

	s.notifyPatient(ctx, updated)

	return updated, nil
}

func (s *Service) notifyPatient(ctx context.Context, c *Consultation) {
	patient, err := s.repo.GetPatientByID(ctx, c.PatientID)
	if err != nil {
		log.Warn().Err(err).Str("consultation_id", c.ID.String()).Msg("skipping status notification: patient lookup failed")
		return
	}

	s.notifier.Dispatch(ctx, notify.Message{
		To:      patient.Email,
		Subject: fmt.Sprintf("Your consultation is %s", c.Status),
		Body: fmt.Sprintf("<p>Your consultation from %s to %s is now <strong>%s</strong>.</p>",
			c.Start, c.End, c.Status),
	})
}

func (s *Service) logEvent(ctx context.Context, ev EventLog, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", ev.EventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev.Payload = data
	ev.CreatedAt = time.Now()

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("event_type", ev.EventType).Msg("failed to insert event log")
	}
}
