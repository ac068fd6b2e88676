package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sudhaanshuu/Arogyam/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 5)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPractitioners(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d practitioners", count)

	specialties := []string{
		"General Medicine",
		"Cardiology",
		"Dermatology",
		"Pediatrics",
		"Psychiatry",
		"Orthopedics",
		"Neurology",
		"Endocrinology",
		"Ophthalmology",
		"ENT",
	}

	timezones := []string{
		"Asia/Kolkata",
		"Asia/Kolkata",
		"Asia/Kolkata",
		"Asia/Dubai",
		"Europe/London",
	}

	// Typical kiosk shifts: morning block plus an optional afternoon block.
	type shift struct{ start, end string }
	morning := []shift{{"09:00", "12:00"}, {"08:00", "13:00"}, {"10:00", "13:00"}}
	afternoon := []shift{{"14:00", "17:00"}, {"15:00", "19:00"}, {"16:00", "20:00"}}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		tz := timezones[gofakeit.Number(0, len(timezones)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, name, specialty, timezone, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, id, name, spec, tz)
		if err != nil {
			return err
		}

		am := morning[gofakeit.Number(0, len(morning)-1)]
		pm := afternoon[gofakeit.Number(0, len(afternoon)-1)]
		hasAfternoon := gofakeit.Bool()

		// Monday through Friday, Saturday mornings for some
		for weekday := 1; weekday <= 5; weekday++ {
			if _, err := tx.Exec(ctx, `
				INSERT INTO weekly_rules (practitioner_id, weekday, start_time, end_time)
				VALUES ($1, $2, $3, $4)
			`, id, weekday, am.start, am.end); err != nil {
				return err
			}
			if hasAfternoon {
				if _, err := tx.Exec(ctx, `
					INSERT INTO weekly_rules (practitioner_id, weekday, start_time, end_time)
					VALUES ($1, $2, $3, $4)
				`, id, weekday, pm.start, pm.end); err != nil {
					return err
				}
			}
		}
		if gofakeit.Bool() {
			if _, err := tx.Exec(ctx, `
				INSERT INTO weekly_rules (practitioner_id, weekday, start_time, end_time)
				VALUES ($1, 6, $2, $3)
			`, id, am.start, am.end); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("practitioners seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
