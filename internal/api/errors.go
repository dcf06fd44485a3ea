package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/consultation-scheduling/internal/attachment"
	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Ordered most specific first.
var errorMappings = []errorMapping{
	{scheduling.ErrMissingField, http.StatusBadRequest, "missing_field", ""},
	{scheduling.ErrInvalidRange, http.StatusBadRequest, "invalid_range", ""},
	{scheduling.ErrValidation, http.StatusBadRequest, "validation_error", ""},
	{scheduling.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found", "doctor not found"},
	{scheduling.ErrPatientNotFound, http.StatusNotFound, "patient_not_found", "patient not found"},
	{scheduling.ErrWindowNotFound, http.StatusNotFound, "window_not_found", "availability window not found"},
	{scheduling.ErrConsultationNotFound, http.StatusNotFound, "consultation_not_found", "consultation not found"},
	{scheduling.ErrNotFound, http.StatusNotFound, "not_found", "resource not found"},
	{scheduling.ErrOutsideWindow, http.StatusUnprocessableEntity, "outside_availability", "selected time is outside the doctor's available hours"},
	{scheduling.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable", "selected time slot is no longer available"},
	{scheduling.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "consultation cannot move to the requested status"},
	{scheduling.ErrWindowInUse, http.StatusConflict, "window_in_use", "availability window has active consultations"},
	{scheduling.ErrUnauthorized, http.StatusForbidden, "authorization_failure", "you are not allowed to perform this action"},
	{scheduling.ErrWindowBusy, http.StatusServiceUnavailable, "window_busy", "this availability window is being booked, please retry shortly"},
	{scheduling.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable", "service temporarily unavailable, please retry"},
	{attachment.ErrInvalidContentType, http.StatusUnsupportedMediaType, "invalid_attachment_type", "attachment must be an image or PDF"},
	{attachment.ErrTooLarge, http.StatusRequestEntityTooLarge, "attachment_too_large", "attachment exceeds the maximum allowed size"},
	{attachment.ErrEmpty, http.StatusBadRequest, "missing_field", "attachment is empty"},
	{attachment.ErrNotFound, http.StatusNotFound, "attachment_not_found", "attachment not found"},
}

// writeServiceError maps err to a stable code and message. Validation
// errors carry their own text; everything else uses a fixed message so no
// internal detail leaks.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}

		message := m.message
		if message == "" {
			message = err.Error()
		}
		if m.status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
			log.Warn().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("transient failure")
		}
		writeError(w, m.status, m.code, message)
		return
	}

	log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("unhandled error")
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
