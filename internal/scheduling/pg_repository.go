package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var _ Repository = (*PgRepository)(nil)

// Helpers

func pgClock(c Clock) pgtype.Time {
	return pgtype.Time{Microseconds: c.Duration().Microseconds(), Valid: true}
}

func clockFromPg(t pgtype.Time) Clock {
	return ClockOf(time.Duration(t.Microseconds) * time.Microsecond)
}

const doctorColumns = `d.id, d.name, d.email, d.specialization, d.created_at, d.updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.Specialization,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

const windowColumns = `w.id, w.doctor_id, w.date, w.start_time, w.end_time, w.status, w.created_at, w.updated_at`

func scanWindow(row pgx.Row) (*Window, error) {
	var (
		w          Window
		date       time.Time
		start, end pgtype.Time
	)

	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&date,
		&start,
		&end,
		&w.Status,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}

	w.Date = DateOf(date)
	w.Start = clockFromPg(start)
	w.End = clockFromPg(end)
	return &w, nil
}

const consultationColumns = `c.id, c.patient_id, c.doctor_id, c.window_id, c.start_time, c.end_time,
	c.reason, c.description, c.attachment_ref, c.status, c.created_at, c.updated_at`

func consultationDest(c *Consultation, start, end *pgtype.Time) []any {
	return []any{
		&c.ID,
		&c.PatientID,
		&c.DoctorID,
		&c.WindowID,
		start,
		end,
		&c.Reason,
		&c.Description,
		&c.AttachmentRef,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var (
		c          Consultation
		start, end pgtype.Time
	)

	if err := row.Scan(consultationDest(&c, &start, &end)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConsultationNotFound
		}
		return nil, err
	}

	c.Start = clockFromPg(start)
	c.End = clockFromPg(end)
	return &c, nil
}

const detailSelect = `
	SELECT ` + consultationColumns + `,
		w.date, w.start_time, w.end_time, w.status,
		d.name, d.email, d.specialization,
		p.name, p.email
	FROM consultations c
	JOIN availability_windows w ON w.id = c.window_id
	JOIN doctors d ON d.id = c.doctor_id
	JOIN patients p ON p.id = c.patient_id
`

func scanConsultationDetail(row pgx.Row) (*ConsultationDetail, error) {
	var (
		det              ConsultationDetail
		start, end       pgtype.Time
		winDate          time.Time
		winStart, winEnd pgtype.Time
	)

	dest := consultationDest(&det.Consultation, &start, &end)
	dest = append(dest,
		&winDate,
		&winStart,
		&winEnd,
		&det.Window.Status,
		&det.Doctor.Name,
		&det.Doctor.Email,
		&det.Doctor.Specialization,
		&det.Patient.Name,
		&det.Patient.Email,
	)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConsultationNotFound
		}
		return nil, err
	}

	det.Start = clockFromPg(start)
	det.End = clockFromPg(end)
	det.Window.ID = det.WindowID
	det.Window.DoctorID = det.DoctorID
	det.Window.Date = DateOf(winDate)
	det.Window.Start = clockFromPg(winStart)
	det.Window.End = clockFromPg(winEnd)
	det.Doctor.ID = det.DoctorID
	det.Patient.ID = det.PatientID
	return &det, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors d
		ORDER BY d.name, d.id
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDoctor)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors d
		WHERE d.id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) CreateWindow(ctx context.Context, w Window) (*Window, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_windows AS w (id, doctor_id, date, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'open', now(), now())
		RETURNING `+windowColumns,
		w.ID, w.DoctorID, w.Date.Time(), pgClock(w.Start), pgClock(w.End))

	return scanWindow(row)
}

func (r *PgRepository) GetWindowByID(ctx context.Context, id uuid.UUID) (*Window, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows w
		WHERE w.id = $1
	`, id)
	return scanWindow(row)
}

func (r *PgRepository) ListWindows(ctx context.Context, doctorID uuid.UUID, date *Date) ([]Window, error) {
	var day *time.Time
	if date != nil {
		t := date.Time()
		day = &t
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows w
		WHERE w.doctor_id = $1
		  AND w.status = 'open'
		  AND ($2::date IS NULL OR w.date = $2::date)
		ORDER BY w.date, w.start_time
	`, doctorID, day)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanWindow)
}

func (r *PgRepository) DeleteWindowIfIdle(ctx context.Context, id uuid.UUID) (*Window, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_windows AS w
		SET status = 'deleted',
		    updated_at = now()
		WHERE w.id = $1
		  AND w.status = 'open'
		  AND NOT EXISTS (
		    SELECT 1 FROM consultations c
		    WHERE c.window_id = w.id AND c.status <> 'rejected'
		  )
		RETURNING `+windowColumns,
		id)

	w, err := scanWindow(row)
	if errors.Is(err, ErrWindowNotFound) {
		return nil, ErrWindowInUse
	}
	return w, err
}

func (r *PgRepository) ListConsultationsByWindow(ctx context.Context, windowID uuid.UUID) ([]Consultation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations c
		WHERE c.window_id = $1
		ORDER BY c.start_time
	`, windowID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanConsultation)
}

func (r *PgRepository) CreateConsultation(ctx context.Context, c Consultation) (*Consultation, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO consultations AS c (id, patient_id, doctor_id, window_id, start_time, end_time,
			reason, description, attachment_ref, status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', now(), now()
		WHERE EXISTS (
			SELECT 1 FROM availability_windows
			WHERE id = $4 AND status = 'open'
		)
		RETURNING `+consultationColumns,
		c.ID, c.PatientID, c.DoctorID, c.WindowID, pgClock(c.Start), pgClock(c.End),
		c.Reason, c.Description, c.AttachmentRef)

	created, err := scanConsultation(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotUnavailable
		}
		if errors.Is(err, ErrConsultationNotFound) {
			// the window was deleted between validation and insert
			return nil, ErrWindowNotFound
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetConsultationByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations c
		WHERE c.id = $1
	`, id)
	return scanConsultation(row)
}

func (r *PgRepository) GetConsultationDetail(ctx context.Context, id uuid.UUID) (*ConsultationDetail, error) {
	row := r.pool.QueryRow(ctx, detailSelect+`WHERE c.id = $1`, id)
	return scanConsultationDetail(row)
}

func (r *PgRepository) ListConsultationsByPatient(ctx context.Context, patientID uuid.UUID) ([]ConsultationDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE c.patient_id = $1
		ORDER BY c.created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanConsultationDetail)
}

func (r *PgRepository) ListConsultationsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]ConsultationDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE c.doctor_id = $1
		ORDER BY c.created_at DESC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanConsultationDetail)
}

func (r *PgRepository) UpdateConsultationStatus(ctx context.Context, id uuid.UUID, from, to ConsultationStatus) (*Consultation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE consultations AS c
		SET status = $2,
		    updated_at = now()
		WHERE c.id = $1
		  AND c.status = $3
		RETURNING `+consultationColumns,
		id, to, from)

	return scanConsultation(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, consultation_id, window_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.ConsultationID, ev.WindowID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
