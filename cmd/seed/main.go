package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/careslot/internal/db"
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

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPlans(context.Background(), pool); err != nil {
		log.Fatalf("seed plans: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}

	log.Println("seed complete")
}

func seedPlans(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("seeding plans")

	plans := []struct {
		name      string
		price     int64
		postLimit int
		days      int
		discount  int
	}{
		{"Starter", 499, 5, 30, 0},
		{"Growth", 1299, 20, 90, 10},
		{"Annual", 3999, 100, 365, 25},
	}

	for _, p := range plans {
		_, err := pool.Exec(ctx, `
			INSERT INTO plans (id, name, price, post_limit, days, discount, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, true)
		`, uuid.New(), p.name, p.price, p.postLimit, p.days, p.discount)
		if err != nil {
			return err
		}
	}

	log.Println("plans seeded")
	return nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d doctors with clinics", count)

	specialties := []string{
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
	timings := [][]string{
		{"Monday", "Wednesday", "Friday"},
		{"Mon-Fri"},
		{"Tuesday", "Thursday", "Saturday"},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		userID := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctor_profiles (id, user_id, full_name, specialty, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'approved', now(), now())
		`, uuid.New(), userID, name, spec)
		if err != nil {
			return err
		}

		days := timings[gofakeit.Number(0, len(timings)-1)]
		_, err = tx.Exec(ctx, `
			INSERT INTO clinics (id, doctor_id, name, address, city, consultation_fee,
				timing_days, timing_start, timing_end, timing_slot_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, '09:00 AM', '01:00 PM', 30, now(), now())
		`, uuid.New(), userID, gofakeit.Company()+" Clinic", gofakeit.Street(), gofakeit.City(),
			int64(gofakeit.Number(300, 2000)), days)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}
