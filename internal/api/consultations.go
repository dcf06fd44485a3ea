package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/consultation-scheduling/internal/attachment"
	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

const (
	attachmentField    = "attachment"
	multipartOverhead  = 1 << 20
	multipartMemoryCap = 1 << 20
)

func submitBookingHandler(svc SchedulingService, store attachment.Store, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}

		var (
			req    SubmitBookingRequest
			stored string
			booked bool
		)
		if isMultipart(r) {
			parsed, ref, ok := bookingFromMultipart(w, r, store, maxBytes)
			if !ok {
				return
			}
			req, stored = parsed, ref
			defer func() {
				if booked || stored == "" {
					return
				}
				if err := store.Delete(r.Context(), stored); err != nil {
					log.Warn().Err(err).Str("ref", stored).Msg("failed to remove attachment of rejected booking")
				}
			}()
		} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID := caller.ID
		if req.PatientID != "" {
			id, ok := optionalUUID(w, "patient_id", req.PatientID)
			if !ok {
				return
			}
			patientID = id
		}
		doctorID, ok := optionalUUID(w, "doctor_id", req.DoctorID)
		if !ok {
			return
		}
		windowID, ok := optionalUUID(w, "window_id", req.WindowID)
		if !ok {
			return
		}
		start, end, ok := clockRange(w, r, req.StartTime, req.EndTime)
		if !ok {
			return
		}

		c, err := svc.SubmitBooking(r.Context(), caller, scheduling.BookingRequest{
			PatientID:     patientID,
			DoctorID:      doctorID,
			WindowID:      windowID,
			Start:         start,
			End:           end,
			Reason:        req.Reason,
			Description:   req.Description,
			AttachmentRef: req.AttachmentRef,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		booked = true

		writeJSON(w, http.StatusCreated, toConsultationResponse(*c))
	}
}

// bookingFromMultipart reads a booking submitted as a form together with its
// attachment file. The file is only stored once reason and description are
// present, so a request failing field checks never writes to disk. The
// returned ref is non-empty only when this call stored the file.
func bookingFromMultipart(w http.ResponseWriter, r *http.Request, store attachment.Store, maxBytes int64) (SubmitBookingRequest, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemoryCap); err != nil {
		writeMultipartError(w, err)
		return SubmitBookingRequest{}, "", false
	}

	req := SubmitBookingRequest{
		PatientID:     r.FormValue("patient_id"),
		DoctorID:      r.FormValue("doctor_id"),
		WindowID:      r.FormValue("window_id"),
		StartTime:     r.FormValue("start_time"),
		EndTime:       r.FormValue("end_time"),
		Reason:        r.FormValue("reason"),
		Description:   r.FormValue("description"),
		AttachmentRef: r.FormValue("attachment_ref"),
	}

	if strings.TrimSpace(req.Reason) == "" || strings.TrimSpace(req.Description) == "" {
		return req, "", true
	}

	file, header, err := r.FormFile(attachmentField)
	if errors.Is(err, http.ErrMissingFile) {
		return req, "", true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not read attachment")
		return SubmitBookingRequest{}, "", false
	}
	defer file.Close()

	ref, err := store.Save(r.Context(), header.Header.Get("Content-Type"), file)
	if err != nil {
		writeServiceError(w, r, err)
		return SubmitBookingRequest{}, "", false
	}
	req.AttachmentRef = ref

	return req, ref, true
}

func listConsultationsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}

		details, err := svc.ListConsultations(r.Context(), caller)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := make([]ConsultationDetailResponse, 0, len(details))
		for _, d := range details {
			resp = append(resp, toDetailResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getConsultationHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		detail, err := svc.GetConsultation(r.Context(), caller, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(*detail))
	}
}

func transitionStatusHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Status == "" {
			writeError(w, http.StatusBadRequest, "missing_field", "status is required")
			return
		}

		ev, err := scheduling.ParseEvent(req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		c, err := svc.TransitionStatus(r.Context(), caller, id, ev)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(*c))
	}
}

func uploadAttachmentHandler(store attachment.Store, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMemoryCap); err != nil {
			writeMultipartError(w, err)
			return
		}

		file, header, err := r.FormFile(attachmentField)
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_field", "attachment file is required")
			return
		}
		defer file.Close()

		ref, err := store.Save(r.Context(), header.Header.Get("Content-Type"), file)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, AttachmentResponse{Ref: ref})
	}
}

func getAttachmentHandler(store attachment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := path.Join("attachments", chi.URLParam(r, "*"))

		rc, err := store.Open(r.Context(), ref)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		defer rc.Close()

		if ct := mime.TypeByExtension(path.Ext(ref)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, rc); err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("attachment stream interrupted")
		}
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func writeMultipartError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "attachment_too_large", "attachment exceeds the maximum allowed size")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse multipart form")
}
