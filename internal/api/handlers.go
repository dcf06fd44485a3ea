package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/auth"
	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

func listDoctorsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, toDoctorResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listWindowsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}

		var date *scheduling.Date
		if raw := r.URL.Query().Get("date"); raw != "" {
			d, err := scheduling.ParseDate(raw)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			date = &d
		}

		windows, err := svc.ListWindows(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := make([]WindowResponse, 0, len(windows))
		for _, win := range windows {
			resp = append(resp, toWindowResponse(win))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}

		raw := r.URL.Query().Get("date")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "missing_field", "date query parameter is required")
			return
		}
		date, err := scheduling.ParseDate(raw)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		slots, err := svc.ListSlots(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createWindowHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}

		var req CreateWindowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID := caller.ID
		if req.DoctorID != "" {
			id, err := uuid.Parse(req.DoctorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			doctorID = id
		}

		var date scheduling.Date
		if req.Date != "" {
			d, err := scheduling.ParseDate(req.Date)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			date = d
		}

		start, end, ok := clockRange(w, r, req.StartTime, req.EndTime)
		if !ok {
			return
		}

		win, err := svc.CreateWindow(r.Context(), caller, doctorID, date, start, end)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toWindowResponse(*win))
	}
}

func deleteWindowHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		windowID, ok := uuidParam(w, r, "windowID")
		if !ok {
			return
		}

		if err := svc.DeleteWindow(r.Context(), caller, windowID); err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses raw, mapping an empty value to uuid.Nil so the service
// reports it as a missing field.
func optionalUUID(w http.ResponseWriter, field, raw string) (uuid.UUID, bool) {
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func clockRange(w http.ResponseWriter, r *http.Request, rawStart, rawEnd string) (scheduling.Clock, scheduling.Clock, bool) {
	if rawStart == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "start_time is required")
		return 0, 0, false
	}
	if rawEnd == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "end_time is required")
		return 0, 0, false
	}

	start, err := scheduling.ParseClock(rawStart)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, 0, false
	}
	end, err := scheduling.ParseClock(rawEnd)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, 0, false
	}
	return start, end, true
}

func callerFrom(w http.ResponseWriter, r *http.Request) (scheduling.Caller, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "authorization bearer token is required")
	}
	return caller, ok
}
