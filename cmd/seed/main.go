package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/consultation-scheduling/internal/auth"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/db"
	"github.com/hackgods/consultation-scheduling/internal/logging"
	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

const (
	doctorCount  = 50
	patientCount = 2000
	windowDays   = 5
)

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("seed", cfg.Env)
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	faker := gofakeit.New(0)

	doctors, err := seedDoctors(ctx, pool, faker, doctorCount)
	if err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	patients, err := seedPatients(ctx, pool, faker, patientCount)
	if err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedWindows(ctx, scheduling.NewPgRepository(pool), doctors, time.Now()); err != nil {
		log.Fatal().Err(err).Msg("seed windows")
	}

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	printToken(verifier, scheduling.Caller{ID: doctors[0], Role: scheduling.RoleDoctor})
	printToken(verifier, scheduling.Caller{ID: patients[0], Role: scheduling.RolePatient})

	log.Info().Msg("seed complete")
}

// uniqueEmail keeps generated addresses distinct across the batch.
func uniqueEmail(faker *gofakeit.Faker, i int) string {
	return fmt.Sprintf("%s.%d@%s", strings.ToLower(faker.Username()), i, faker.DomainName())
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		specialization := specializations[faker.Number(0, len(specializations)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, email, specialization, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, "Dr. "+faker.Name(), uniqueEmail(faker, i), specialization)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info().Msg("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, faker.Name(), uniqueEmail(faker, i))
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Info().Int("seeded", end).Int("total", count).Msg("patients progress")
	}

	return ids, nil
}

// seedWindows gives every doctor a morning and an afternoon window on each of
// the next weekdays.
func seedWindows(ctx context.Context, repo *scheduling.PgRepository, doctors []uuid.UUID, from time.Time) error {
	morning := [2]scheduling.Clock{scheduling.ClockOf(9 * time.Hour), scheduling.ClockOf(12 * time.Hour)}
	afternoon := [2]scheduling.Clock{scheduling.ClockOf(13 * time.Hour), scheduling.ClockOf(17*time.Hour + 15*time.Minute)}

	var created int
	day := from
	for days := 0; days < windowDays; {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days++

		date := scheduling.DateOf(day)
		for _, doctorID := range doctors {
			for _, span := range [][2]scheduling.Clock{morning, afternoon} {
				_, err := repo.CreateWindow(ctx, scheduling.Window{
					DoctorID: doctorID,
					Date:     date,
					Start:    span[0],
					End:      span[1],
				})
				if err != nil {
					return fmt.Errorf("window %s %s: %w", doctorID, date, err)
				}
				created++
			}
		}
	}

	log.Info().Int("count", created).Msg("windows seeded")
	return nil
}

func printToken(v *auth.Verifier, caller scheduling.Caller) {
	token, err := v.Issue(caller, 24*time.Hour)
	if err != nil {
		log.Fatal().Err(err).Msg("issue token")
	}
	log.Info().Str("role", string(caller.Role)).Str("id", caller.ID.String()).Str("token", token).Msg("sample token")
}
