package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/notify"
)

// memRepository is an in-memory Repository for service tests. It enforces the
// same (window, start) uniqueness and compare-and-set rules as the Postgres
// schema.
type memRepository struct {
	mu            sync.Mutex
	doctors       map[uuid.UUID]Doctor
	patients      map[uuid.UUID]Patient
	windows       map[uuid.UUID]Window
	consultations map[uuid.UUID]Consultation
	events        []EventLog

	failWith error
}

func newMemRepository() *memRepository {
	return &memRepository{
		doctors:       map[uuid.UUID]Doctor{},
		patients:      map[uuid.UUID]Patient{},
		windows:       map[uuid.UUID]Window{},
		consultations: map[uuid.UUID]Consultation{},
	}
}

func (r *memRepository) addDoctor(name string) Doctor {
	d := Doctor{ID: uuid.New(), Name: name, Email: name + "@clinic.test", Specialization: "General Practice"}
	r.doctors[d.ID] = d
	return d
}

func (r *memRepository) addPatient(name string) Patient {
	p := Patient{ID: uuid.New(), Name: name, Email: name + "@mail.test"}
	r.patients[p.ID] = p
	return p
}

func (r *memRepository) addWindow(doctorID uuid.UUID, date Date, start, end Clock) Window {
	w := Window{ID: uuid.New(), DoctorID: doctorID, Date: date, Start: start, End: end, Status: WindowOpen}
	r.windows[w.ID] = w
	return w
}

func (r *memRepository) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, ev := range r.events {
		types = append(types, ev.EventType)
	}
	return types
}

func (r *memRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []Doctor
	for _, d := range r.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *memRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepository) CreateWindow(ctx context.Context, w Window) (*Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.ID = uuid.New()
	w.Status = WindowOpen
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	r.windows[w.ID] = w
	return &w, nil
}

func (r *memRepository) GetWindowByID(ctx context.Context, id uuid.UUID) (*Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}
	return &w, nil
}

func (r *memRepository) ListWindows(ctx context.Context, doctorID uuid.UUID, date *Date) ([]Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Window
	for _, w := range r.windows {
		if w.DoctorID != doctorID || w.Status != WindowOpen {
			continue
		}
		if date != nil && w.Date != *date {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Time().Before(out[j].Date.Time())
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (r *memRepository) DeleteWindowIfIdle(ctx context.Context, id uuid.UUID) (*Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	if !ok || w.Status != WindowOpen {
		return nil, ErrWindowInUse
	}
	for _, c := range r.consultations {
		if c.WindowID == id && c.Blocks() {
			return nil, ErrWindowInUse
		}
	}
	w.Status = WindowDeleted
	r.windows[id] = w
	return &w, nil
}

func (r *memRepository) ListConsultationsByWindow(ctx context.Context, windowID uuid.UUID) ([]Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Consultation
	for _, c := range r.consultations {
		if c.WindowID == windowID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepository) CreateConsultation(ctx context.Context, c Consultation) (*Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.windows[c.WindowID]; !ok || w.Status != WindowOpen {
		return nil, ErrWindowNotFound
	}
	for _, existing := range r.consultations {
		if existing.WindowID == c.WindowID && existing.Start == c.Start && existing.Blocks() {
			return nil, ErrSlotUnavailable
		}
	}
	c.ID = uuid.New()
	c.Status = StatusPending
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.consultations[c.ID] = c
	return &c, nil
}

func (r *memRepository) GetConsultationByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.consultations[id]
	if !ok {
		return nil, ErrConsultationNotFound
	}
	return &c, nil
}

func (r *memRepository) detail(c Consultation) ConsultationDetail {
	return ConsultationDetail{
		Consultation: c,
		Window:       r.windows[c.WindowID],
		Doctor:       r.doctors[c.DoctorID],
		Patient:      r.patients[c.PatientID],
	}
}

func (r *memRepository) GetConsultationDetail(ctx context.Context, id uuid.UUID) (*ConsultationDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.consultations[id]
	if !ok {
		return nil, ErrConsultationNotFound
	}
	d := r.detail(c)
	return &d, nil
}

func (r *memRepository) ListConsultationsByPatient(ctx context.Context, patientID uuid.UUID) ([]ConsultationDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ConsultationDetail
	for _, c := range r.consultations {
		if c.PatientID == patientID {
			out = append(out, r.detail(c))
		}
	}
	return out, nil
}

func (r *memRepository) ListConsultationsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]ConsultationDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ConsultationDetail
	for _, c := range r.consultations {
		if c.DoctorID == doctorID {
			out = append(out, r.detail(c))
		}
	}
	return out, nil
}

func (r *memRepository) UpdateConsultationStatus(ctx context.Context, id uuid.UUID, from, to ConsultationStatus) (*Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.consultations[id]
	if !ok || c.Status != from {
		return nil, ErrConsultationNotFound
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	r.consultations[id] = c
	return &c, nil
}

func (r *memRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// passLocker runs fn directly; lockErr simulates a held lock.
type passLocker struct {
	lockErr error
}

func (l passLocker) WithWindowLock(ctx context.Context, windowID uuid.UUID, fn func(ctx context.Context) error) error {
	if l.lockErr != nil {
		return l.lockErr
	}
	return fn(ctx)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *recordingNotifier) Dispatch(ctx context.Context, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.sent...)
}
