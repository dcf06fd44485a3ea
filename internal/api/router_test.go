package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/consultation-scheduling/internal/attachment"
	"github.com/hackgods/consultation-scheduling/internal/auth"
	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) ListDoctors(ctx context.Context) ([]scheduling.Doctor, error) {
	args := m.Called(ctx)
	return args.Get(0).([]scheduling.Doctor), args.Error(1)
}

func (m *mockService) ListWindows(ctx context.Context, doctorID uuid.UUID, date *scheduling.Date) ([]scheduling.Window, error) {
	args := m.Called(ctx, doctorID, date)
	return args.Get(0).([]scheduling.Window), args.Error(1)
}

func (m *mockService) CreateWindow(ctx context.Context, caller scheduling.Caller, doctorID uuid.UUID, date scheduling.Date, start, end scheduling.Clock) (*scheduling.Window, error) {
	args := m.Called(ctx, caller, doctorID, date, start, end)
	w, _ := args.Get(0).(*scheduling.Window)
	return w, args.Error(1)
}

func (m *mockService) DeleteWindow(ctx context.Context, caller scheduling.Caller, windowID uuid.UUID) error {
	return m.Called(ctx, caller, windowID).Error(0)
}

func (m *mockService) ListSlots(ctx context.Context, doctorID uuid.UUID, date scheduling.Date) ([]scheduling.Slot, error) {
	args := m.Called(ctx, doctorID, date)
	return args.Get(0).([]scheduling.Slot), args.Error(1)
}

func (m *mockService) SubmitBooking(ctx context.Context, caller scheduling.Caller, req scheduling.BookingRequest) (*scheduling.Consultation, error) {
	args := m.Called(ctx, caller, req)
	c, _ := args.Get(0).(*scheduling.Consultation)
	return c, args.Error(1)
}

func (m *mockService) ListConsultations(ctx context.Context, caller scheduling.Caller) ([]scheduling.ConsultationDetail, error) {
	args := m.Called(ctx, caller)
	return args.Get(0).([]scheduling.ConsultationDetail), args.Error(1)
}

func (m *mockService) GetConsultation(ctx context.Context, caller scheduling.Caller, id uuid.UUID) (*scheduling.ConsultationDetail, error) {
	args := m.Called(ctx, caller, id)
	d, _ := args.Get(0).(*scheduling.ConsultationDetail)
	return d, args.Error(1)
}

func (m *mockService) TransitionStatus(ctx context.Context, caller scheduling.Caller, id uuid.UUID, ev scheduling.Event) (*scheduling.Consultation, error) {
	args := m.Called(ctx, caller, id, ev)
	c, _ := args.Get(0).(*scheduling.Consultation)
	return c, args.Error(1)
}

type testServer struct {
	handler   http.Handler
	svc       *mockService
	verifier  *auth.Verifier
	uploadDir string
	patient   scheduling.Caller
	doctor    scheduling.Caller
	pgDown    bool
	redisDown bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	store, err := attachment.NewLocalStore(dir, 1024)
	require.NoError(t, err)

	ts := &testServer{
		svc:       new(mockService),
		verifier:  auth.NewVerifier([]byte("test-secret"), "consultations"),
		uploadDir: dir,
		patient:   scheduling.Caller{ID: uuid.New(), Role: scheduling.RolePatient},
		doctor:    scheduling.Caller{ID: uuid.New(), Role: scheduling.RoleDoctor},
	}
	ts.handler = NewRouter(RouterConfig{
		Service:            ts.svc,
		Attachments:        store,
		MaxAttachmentBytes: 1024,
		Verifier:           ts.verifier,
		PostgresCheck: func(context.Context) error {
			if ts.pgDown {
				return errors.New("connection refused")
			}
			return nil
		},
		RedisCheck: func(context.Context) error {
			if ts.redisDown {
				return errors.New("connection refused")
			}
			return nil
		},
		Env:     "test",
		Version: "dev",
	})
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request, caller *scheduling.Caller) *httptest.ResponseRecorder {
	t.Helper()
	if caller != nil {
		token, err := ts.verifier.Issue(*caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func clock(t *testing.T, s string) scheduling.Clock {
	t.Helper()
	c, err := scheduling.ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestListDoctors(t *testing.T) {
	ts := newTestServer(t)
	doc := scheduling.Doctor{ID: uuid.New(), Name: "Gregory House", Specialization: "Diagnostics"}
	ts.svc.On("ListDoctors", mock.Anything).Return([]scheduling.Doctor{doc}, nil)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/doctors", nil), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []DoctorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, doc.ID, resp[0].ID)
	assert.Equal(t, "Diagnostics", resp[0].Specialization)
}

func TestListSlots(t *testing.T) {
	doctorID := uuid.New()
	date, err := scheduling.ParseDate("2024-10-21")
	require.NoError(t, err)

	t.Run("returns slots with wall clock times", func(t *testing.T) {
		ts := newTestServer(t)
		windowID := uuid.New()
		slot := scheduling.Slot{
			Key:       scheduling.SlotKey{WindowID: windowID, Start: clock(t, "09:00")},
			Start:     clock(t, "09:00"),
			End:       clock(t, "09:30"),
			Available: true,
		}
		ts.svc.On("ListSlots", mock.Anything, doctorID, date).Return([]scheduling.Slot{slot}, nil)

		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/doctors/"+doctorID.String()+"/slots?date=2024-10-21", nil), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"start_time":"09:00"`)
		assert.Contains(t, rec.Body.String(), `"end_time":"09:30"`)
		assert.Contains(t, rec.Body.String(), slot.Key.ID().String())
	})

	t.Run("empty list is an array", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("ListSlots", mock.Anything, doctorID, date).Return([]scheduling.Slot{}, nil)

		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/doctors/"+doctorID.String()+"/slots?date=2024-10-21", nil), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("date is required", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/doctors/"+doctorID.String()+"/slots", nil), nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing_field", decodeError(t, rec).Error)
		ts.svc.AssertNotCalled(t, "ListSlots", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("ListSlots", mock.Anything, doctorID, date).Return([]scheduling.Slot(nil), scheduling.ErrDoctorNotFound)

		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/doctors/"+doctorID.String()+"/slots?date=2024-10-21", nil), nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "doctor_not_found", decodeError(t, rec).Error)
	})
}

func TestListWindows_DateFilter(t *testing.T) {
	ts := newTestServer(t)
	doctorID := uuid.New()
	ts.svc.On("ListWindows", mock.Anything, doctorID, mock.MatchedBy(func(d *scheduling.Date) bool {
		return d != nil && d.String() == "2024-10-21"
	})).Return([]scheduling.Window{}, nil)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/doctors/"+doctorID.String()+"/windows?date=2024-10-21", nil), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	ts.svc.AssertExpectations(t)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	t.Run("missing token", func(t *testing.T) {
		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/consultations", nil), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing_token", decodeError(t, rec).Error)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := auth.NewVerifier([]byte("other-secret"), "consultations")
		token, err := other.Issue(ts.patient, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/consultations", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := ts.do(t, req, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_token", decodeError(t, rec).Error)
	})

	ts.svc.AssertNotCalled(t, "ListConsultations", mock.Anything, mock.Anything)
}

func TestSubmitBooking_JSON(t *testing.T) {
	ts := newTestServer(t)
	doctorID, windowID := uuid.New(), uuid.New()

	created := &scheduling.Consultation{
		ID:        uuid.New(),
		PatientID: ts.patient.ID,
		DoctorID:  doctorID,
		WindowID:  windowID,
		Start:     clock(t, "09:00"),
		End:       clock(t, "09:30"),
		Status:    scheduling.StatusPending,
	}
	ts.svc.On("SubmitBooking", mock.Anything, ts.patient, mock.MatchedBy(func(r scheduling.BookingRequest) bool {
		return r.PatientID == ts.patient.ID &&
			r.DoctorID == doctorID &&
			r.WindowID == windowID &&
			r.Start == clock(t, "09:00") &&
			r.End == clock(t, "09:30") &&
			r.AttachmentRef == "attachments/x.png"
	})).Return(created, nil)

	req := httptest.NewRequest(http.MethodPost, "/consultations", jsonBody(t, SubmitBookingRequest{
		DoctorID:      doctorID.String(),
		WindowID:      windowID.String(),
		StartTime:     "09:00",
		EndTime:       "09:30",
		Reason:        "checkup",
		Description:   "annual",
		AttachmentRef: "attachments/x.png",
	}))
	rec := ts.do(t, req, &ts.patient)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ConsultationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	ts.svc.AssertExpectations(t)
}

func TestSubmitBooking_InputErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{`, "invalid_request_body"},
		{"bad window id", `{"window_id":"nope","start_time":"09:00","end_time":"09:30"}`, "invalid_id"},
		{"missing start", `{"end_time":"09:30"}`, "missing_field"},
		{"malformed time", `{"start_time":"9am","end_time":"09:30"}`, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			req := httptest.NewRequest(http.MethodPost, "/consultations", strings.NewReader(tt.body))
			rec := ts.do(t, req, &ts.patient)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
			ts.svc.AssertNotCalled(t, "SubmitBooking", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing field", fmt.Errorf("%w: reason is required", scheduling.ErrMissingField), http.StatusBadRequest, "missing_field"},
		{"invalid range", scheduling.ErrInvalidRange, http.StatusBadRequest, "invalid_range"},
		{"outside availability", scheduling.ErrOutsideWindow, http.StatusUnprocessableEntity, "outside_availability"},
		{"slot unavailable", scheduling.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
		{"unauthorized", scheduling.ErrUnauthorized, http.StatusForbidden, "authorization_failure"},
		{"window not found", scheduling.ErrWindowNotFound, http.StatusNotFound, "window_not_found"},
		{"window busy", scheduling.ErrWindowBusy, http.StatusServiceUnavailable, "window_busy"},
		{"store unavailable", fmt.Errorf("create consultation: %w: %w", scheduling.ErrStoreUnavailable, errors.New("dial tcp 10.0.0.3:5432")), http.StatusServiceUnavailable, "store_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.svc.On("SubmitBooking", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/consultations", jsonBody(t, SubmitBookingRequest{
				DoctorID:  uuid.NewString(),
				WindowID:  uuid.NewString(),
				StartTime: "09:00",
				EndTime:   "09:30",
			}))
			rec := ts.do(t, req, &ts.patient)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Error)
			assert.NotContains(t, resp.Details, "10.0.0.3")
			if tt.status == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func multipartBooking(t *testing.T, fields map[string]string, file []byte, contentType string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="attachment"; filename="scan"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitBooking_Multipart(t *testing.T) {
	fields := map[string]string{
		"doctor_id":   uuid.NewString(),
		"window_id":   uuid.NewString(),
		"start_time":  "10:00",
		"end_time":    "10:30",
		"reason":      "rash",
		"description": "since monday",
	}

	t.Run("stores the attachment and passes its reference", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("SubmitBooking", mock.Anything, ts.patient, mock.MatchedBy(func(r scheduling.BookingRequest) bool {
			return strings.HasPrefix(r.AttachmentRef, "attachments/") && strings.HasSuffix(r.AttachmentRef, ".png")
		})).Return(&scheduling.Consultation{ID: uuid.New(), Status: scheduling.StatusPending}, nil)

		body, ct := multipartBooking(t, fields, []byte("\x89PNG"), "image/png")
		req := httptest.NewRequest(http.MethodPost, "/consultations", body)
		req.Header.Set("Content-Type", ct)
		rec := ts.do(t, req, &ts.patient)

		require.Equal(t, http.StatusCreated, rec.Code)
		entries, err := os.ReadDir(ts.uploadDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("missing reason does not store the file", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("SubmitBooking", mock.Anything, ts.patient, mock.MatchedBy(func(r scheduling.BookingRequest) bool {
			return r.AttachmentRef == ""
		})).Return(nil, fmt.Errorf("%w: reason is required", scheduling.ErrMissingField))

		withoutReason := make(map[string]string)
		for k, v := range fields {
			if k != "reason" {
				withoutReason[k] = v
			}
		}
		body, ct := multipartBooking(t, withoutReason, []byte("\x89PNG"), "image/png")
		req := httptest.NewRequest(http.MethodPost, "/consultations", body)
		req.Header.Set("Content-Type", ct)
		rec := ts.do(t, req, &ts.patient)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing_field", decodeError(t, rec).Error)
		entries, err := os.ReadDir(ts.uploadDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("rejected booking removes the stored file", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("SubmitBooking", mock.Anything, ts.patient, mock.Anything).
			Return(nil, scheduling.ErrSlotUnavailable)

		body, ct := multipartBooking(t, fields, []byte("%PDF-1.7"), "application/pdf")
		req := httptest.NewRequest(http.MethodPost, "/consultations", body)
		req.Header.Set("Content-Type", ct)
		rec := ts.do(t, req, &ts.patient)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "slot_unavailable", decodeError(t, rec).Error)
		entries, err := os.ReadDir(ts.uploadDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("malformed time removes the stored file", func(t *testing.T) {
		ts := newTestServer(t)

		badTime := make(map[string]string)
		for k, v := range fields {
			badTime[k] = v
		}
		badTime["start_time"] = "10:0x"
		body, ct := multipartBooking(t, badTime, []byte("\x89PNG"), "image/png")
		req := httptest.NewRequest(http.MethodPost, "/consultations", body)
		req.Header.Set("Content-Type", ct)
		rec := ts.do(t, req, &ts.patient)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ts.svc.AssertNotCalled(t, "SubmitBooking", mock.Anything, mock.Anything, mock.Anything)
		entries, err := os.ReadDir(ts.uploadDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("rejects unsupported attachment types", func(t *testing.T) {
		ts := newTestServer(t)

		body, ct := multipartBooking(t, fields, []byte("MZ"), "application/x-msdownload")
		req := httptest.NewRequest(http.MethodPost, "/consultations", body)
		req.Header.Set("Content-Type", ct)
		rec := ts.do(t, req, &ts.patient)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		ts.svc.AssertNotCalled(t, "SubmitBooking", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAttachmentRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartBooking(t, nil, []byte("%PDF-1.7"), "application/pdf")
	req := httptest.NewRequest(http.MethodPost, "/attachments", body)
	req.Header.Set("Content-Type", ct)
	rec := ts.do(t, req, &ts.patient)

	require.Equal(t, http.StatusCreated, rec.Code)
	var uploaded AttachmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	require.True(t, strings.HasPrefix(uploaded.Ref, "attachments/"))

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/"+uploaded.Ref, nil), &ts.doctor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.7", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/attachments/"+uuid.NewString()+".pdf", nil), &ts.doctor)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionStatus(t *testing.T) {
	id := uuid.New()

	t.Run("accepts a known event", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("TransitionStatus", mock.Anything, ts.doctor, id, scheduling.EventAccept).
			Return(&scheduling.Consultation{ID: id, Status: scheduling.StatusAccepted}, nil)

		req := httptest.NewRequest(http.MethodPut, "/consultations/"+id.String()+"/status", strings.NewReader(`{"status":"accepted"}`))
		rec := ts.do(t, req, &ts.doctor)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"accepted"`)
	})

	t.Run("unknown event never reaches the service", func(t *testing.T) {
		ts := newTestServer(t)

		req := httptest.NewRequest(http.MethodPut, "/consultations/"+id.String()+"/status", strings.NewReader(`{"status":"archive"}`))
		rec := ts.do(t, req, &ts.doctor)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ts.svc.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("terminal consultation", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("TransitionStatus", mock.Anything, ts.doctor, id, scheduling.EventComplete).
			Return(nil, scheduling.ErrInvalidTransition)

		req := httptest.NewRequest(http.MethodPut, "/consultations/"+id.String()+"/status", strings.NewReader(`{"status":"completed"}`))
		rec := ts.do(t, req, &ts.doctor)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "invalid_transition", decodeError(t, rec).Error)
	})
}

func TestWindows(t *testing.T) {
	t.Run("create defaults doctor to the caller", func(t *testing.T) {
		ts := newTestServer(t)
		date, err := scheduling.ParseDate("2024-10-21")
		require.NoError(t, err)
		ts.svc.On("CreateWindow", mock.Anything, ts.doctor, ts.doctor.ID, date, clock(t, "09:00"), clock(t, "12:00")).
			Return(&scheduling.Window{ID: uuid.New(), DoctorID: ts.doctor.ID, Date: date, Start: clock(t, "09:00"), End: clock(t, "12:00")}, nil)

		req := httptest.NewRequest(http.MethodPost, "/windows", strings.NewReader(`{"date":"2024-10-21","start_time":"09:00","end_time":"12:00"}`))
		rec := ts.do(t, req, &ts.doctor)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"date":"2024-10-21"`)
	})

	t.Run("delete blocked by live consultations", func(t *testing.T) {
		ts := newTestServer(t)
		windowID := uuid.New()
		ts.svc.On("DeleteWindow", mock.Anything, ts.doctor, windowID).Return(scheduling.ErrWindowInUse)

		rec := ts.do(t, httptest.NewRequest(http.MethodDelete, "/windows/"+windowID.String(), nil), &ts.doctor)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "window_in_use", decodeError(t, rec).Error)
	})

	t.Run("delete succeeds", func(t *testing.T) {
		ts := newTestServer(t)
		windowID := uuid.New()
		ts.svc.On("DeleteWindow", mock.Anything, ts.doctor, windowID).Return(nil)

		rec := ts.do(t, httptest.NewRequest(http.MethodDelete, "/windows/"+windowID.String(), nil), &ts.doctor)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestListConsultations(t *testing.T) {
	ts := newTestServer(t)
	detail := scheduling.ConsultationDetail{
		Consultation: scheduling.Consultation{ID: uuid.New(), PatientID: ts.patient.ID, Status: scheduling.StatusPending},
		Doctor:       scheduling.Doctor{Name: "Gregory House", Specialization: "Diagnostics"},
		Patient:      scheduling.Patient{Name: "Alice"},
		Window: scheduling.Window{
			ID:    uuid.New(),
			Date:  scheduling.Date{Year: 2024, Month: time.October, Day: 21},
			Start: 9 * 60,
			End:   12 * 60,
		},
	}
	ts.svc.On("ListConsultations", mock.Anything, ts.patient).Return([]scheduling.ConsultationDetail{detail}, nil)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/consultations", nil), &ts.patient)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []ConsultationDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Gregory House", resp[0].DoctorName)
	assert.Equal(t, "Alice", resp[0].PatientName)
	assert.Equal(t, detail.Window.Date, resp[0].Window.Date)
	assert.Equal(t, scheduling.Clock(9*60), resp[0].Window.StartTime)
	assert.Contains(t, rec.Body.String(), `"date":"2024-10-21"`)
}

func TestHealth(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("redis down degrades", func(t *testing.T) {
		ts := newTestServer(t)
		ts.redisDown = true
		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	})

	t.Run("postgres down fails", func(t *testing.T) {
		ts := newTestServer(t)
		ts.pgDown = true
		rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil), nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
