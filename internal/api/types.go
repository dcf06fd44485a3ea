package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

type CreateWindowRequest struct {
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type SubmitBookingRequest struct {
	PatientID     string `json:"patient_id"`
	DoctorID      string `json:"doctor_id"`
	WindowID      string `json:"window_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Reason        string `json:"reason"`
	Description   string `json:"description"`
	AttachmentRef string `json:"attachment_ref"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
}

type WindowResponse struct {
	ID        uuid.UUID        `json:"id"`
	DoctorID  uuid.UUID        `json:"doctor_id"`
	Date      scheduling.Date  `json:"date"`
	StartTime scheduling.Clock `json:"start_time"`
	EndTime   scheduling.Clock `json:"end_time"`
}

type SlotResponse struct {
	ID        uuid.UUID        `json:"id"`
	WindowID  uuid.UUID        `json:"window_id"`
	StartTime scheduling.Clock `json:"start_time"`
	EndTime   scheduling.Clock `json:"end_time"`
	Available bool             `json:"available"`
}

type ConsultationResponse struct {
	ID            uuid.UUID        `json:"id"`
	PatientID     uuid.UUID        `json:"patient_id"`
	DoctorID      uuid.UUID        `json:"doctor_id"`
	WindowID      uuid.UUID        `json:"window_id"`
	Status        string           `json:"status"`
	StartTime     scheduling.Clock `json:"start_time"`
	EndTime       scheduling.Clock `json:"end_time"`
	Reason        string           `json:"reason"`
	Description   string           `json:"description"`
	AttachmentRef string           `json:"attachment_ref"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type ConsultationDetailResponse struct {
	ConsultationResponse
	DoctorName     string         `json:"doctor_name"`
	Specialization string         `json:"specialization"`
	PatientName    string         `json:"patient_name"`
	Window         WindowResponse `json:"window"`
}

type AttachmentResponse struct {
	Ref string `json:"ref"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toDoctorResponse(d scheduling.Doctor) DoctorResponse {
	return DoctorResponse{ID: d.ID, Name: d.Name, Specialization: d.Specialization}
}

func toWindowResponse(w scheduling.Window) WindowResponse {
	return WindowResponse{
		ID:        w.ID,
		DoctorID:  w.DoctorID,
		Date:      w.Date,
		StartTime: w.Start,
		EndTime:   w.End,
	}
}

func toSlotResponse(s scheduling.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.Key.ID(),
		WindowID:  s.Key.WindowID,
		StartTime: s.Start,
		EndTime:   s.End,
		Available: s.Available,
	}
}

func toConsultationResponse(c scheduling.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:            c.ID,
		PatientID:     c.PatientID,
		DoctorID:      c.DoctorID,
		WindowID:      c.WindowID,
		Status:        string(c.Status),
		StartTime:     c.Start,
		EndTime:       c.End,
		Reason:        c.Reason,
		Description:   c.Description,
		AttachmentRef: c.AttachmentRef,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toDetailResponse(d scheduling.ConsultationDetail) ConsultationDetailResponse {
	return ConsultationDetailResponse{
		ConsultationResponse: toConsultationResponse(d.Consultation),
		DoctorName:           d.Doctor.Name,
		Specialization:       d.Doctor.Specialization,
		PatientName:          d.Patient.Name,
		Window:               toWindowResponse(d.Window),
	}
}
