package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/attachment"
	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

// SchedulingService is the query surface the HTTP layer exposes.
type SchedulingService interface {
	ListDoctors(ctx context.Context) ([]scheduling.Doctor, error)
	ListWindows(ctx context.Context, doctorID uuid.UUID, date *scheduling.Date) ([]scheduling.Window, error)
	CreateWindow(ctx context.Context, caller scheduling.Caller, doctorID uuid.UUID, date scheduling.Date, start, end scheduling.Clock) (*scheduling.Window, error)
	DeleteWindow(ctx context.Context, caller scheduling.Caller, windowID uuid.UUID) error
	ListSlots(ctx context.Context, doctorID uuid.UUID, date scheduling.Date) ([]scheduling.Slot, error)
	SubmitBooking(ctx context.Context, caller scheduling.Caller, req scheduling.BookingRequest) (*scheduling.Consultation, error)
	ListConsultations(ctx context.Context, caller scheduling.Caller) ([]scheduling.ConsultationDetail, error)
	GetConsultation(ctx context.Context, caller scheduling.Caller, id uuid.UUID) (*scheduling.ConsultationDetail, error)
	TransitionStatus(ctx context.Context, caller scheduling.Caller, id uuid.UUID, ev scheduling.Event) (*scheduling.Consultation, error)
}

type RouterConfig struct {
	Service            SchedulingService
	Attachments        attachment.Store
	MaxAttachmentBytes int64
	Verifier           TokenVerifier
	PostgresCheck      Check
	RedisCheck         Check
	Env                string
	Version            string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PostgresCheck, cfg.RedisCheck, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Public browsing
	r.Get("/doctors", listDoctorsHandler(cfg.Service))
	r.Get("/doctors/{doctorID}/windows", listWindowsHandler(cfg.Service))
	r.Get("/doctors/{doctorID}/slots", listSlotsHandler(cfg.Service))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier))

		r.Post("/windows", createWindowHandler(cfg.Service))
		r.Delete("/windows/{windowID}", deleteWindowHandler(cfg.Service))

		r.Post("/attachments", uploadAttachmentHandler(cfg.Attachments, cfg.MaxAttachmentBytes))
		r.Get("/attachments/*", getAttachmentHandler(cfg.Attachments))

		r.Post("/consultations", submitBookingHandler(cfg.Service, cfg.Attachments, cfg.MaxAttachmentBytes))
		r.Get("/consultations", listConsultationsHandler(cfg.Service))
		r.Get("/consultations/{id}", getConsultationHandler(cfg.Service))
		r.Put("/consultations/{id}/status", transitionStatusHandler(cfg.Service))
	})

	return r
}
