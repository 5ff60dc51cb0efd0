package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-agenda/internal/agenda"
	"github.com/hackgods/dental-agenda/internal/db"
	"github.com/hackgods/dental-agenda/internal/logging"
	"github.com/hackgods/dental-agenda/internal/patient"
)

// Fixed patients with accents and compound names so text references can be
// tried by hand right after seeding.
var fixedPatients = []patient.Patient{
	{FirstName: "Ana", LastName: "Gómez"},
	{FirstName: "Luis", LastName: "Pérez"},
	{FirstName: "José María", LastName: "Núñez Ibáñez"},
	{FirstName: "Íñigo", LastName: "Araújo"},
}

func main() {
	patients := flag.Int("patients", 500, "number of random patients to create")
	practitioner := flag.Int64("practitioner", 1, "practitioner id for the sample agenda day")
	dayFlag := flag.String("day", "", "sample agenda day (YYYY-MM-DD), defaults to tomorrow")
	flag.Parse()

	logger := logging.New(os.Stdout, true, "info")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	day := agenda.DayOf(time.Now().AddDate(0, 0, 1))
	if *dayFlag != "" {
		d, err := agenda.ParseDay(*dayFlag)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid -day")
		}
		day = d
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	dir := patient.NewPgDirectory(pool)

	ids, err := seedPatients(ctx, dir, *patients, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	svc := agenda.NewService(agenda.NewPgStore(pool), agenda.NewLocalLocker(agenda.DefaultLockWait, agenda.DefaultLockTTL),
		patient.NewResolver(dir, 2*time.Second), logger)
	if err := seedDay(ctx, svc, *practitioner, day, ids, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed agenda day")
	}

	logger.Info().Msg("seed complete")
}

func seedPatients(ctx context.Context, dir *patient.PgDirectory, count int, logger zerolog.Logger) ([]int64, error) {
	logger.Info().Int("count", count+len(fixedPatients)).Msg("seeding patients")

	ids := make([]int64, 0, count+len(fixedPatients))
	for _, p := range fixedPatients {
		p.DocumentID = ptr(gofakeit.Numerify("########"))
		p.Phone = ptr(gofakeit.Phone())
		created, err := dir.Insert(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", p.FullName(), err)
		}
		ids = append(ids, created.ID)
	}

	for i := 0; i < count; i++ {
		created, err := dir.Insert(ctx, patient.Patient{
			FirstName:  gofakeit.FirstName(),
			LastName:   gofakeit.LastName(),
			DocumentID: ptr(gofakeit.Numerify("########")),
			Phone:      ptr(gofakeit.Phone()),
			Email:      ptr(gofakeit.Email()),
		})
		if err != nil {
			return nil, fmt.Errorf("insert patient %d: %w", i, err)
		}
		ids = append(ids, created.ID)

		if (i+1)%100 == 0 {
			logger.Info().Int("done", i+1).Int("total", count).Msg("patients seeded")
		}
	}

	return ids, nil
}

// seedDay books half-hour slots from 09:00 to 13:00, some by name and some by id,
// then walks a few of them through the lifecycle.
func seedDay(ctx context.Context, svc *agenda.Service, practitionerID int64, day agenda.Day, ids []int64, logger zerolog.Logger) error {
	reasons := []string{"Checkup", "Cleaning", "Filling", "Extraction", "Orthodontic review", "Whitening"}

	var booked []*agenda.Appointment
	const open, close = agenda.Clock(9 * 60), agenda.Clock(13 * 60)
	for i, clock := 0, open; clock < close; i, clock = i+1, clock+30 {
		ref := patient.ByID(ids[gofakeit.Number(0, len(ids)-1)])
		if i < len(fixedPatients) {
			ref = patient.ByText(fixedPatients[i].FullName())
		}

		appt, err := svc.Create(ctx, agenda.CreateRequest{
			PractitionerID: practitionerID,
			Day:            day,
			Time:           clock.String(),
			Patient:        ref,
			Reason:         reasons[gofakeit.Number(0, len(reasons)-1)],
		})
		if errors.Is(err, agenda.ErrSlotOccupied) {
			logger.Warn().Str("time", clock.String()).Msg("slot already booked, skipping")
			continue
		}
		if err != nil {
			return fmt.Errorf("book %s: %w", clock, err)
		}
		booked = append(booked, appt)
	}

	transitions := []agenda.Status{agenda.StatusConfirmed, agenda.StatusPending, agenda.StatusCancelled}
	for i, status := range transitions {
		if i >= len(booked) {
			break
		}
		if _, err := svc.UpdateStatus(ctx, practitionerID, booked[i].ID, status); err != nil {
			return fmt.Errorf("set %s: %w", status, err)
		}
	}

	logger.Info().
		Int64("practitioner_id", practitionerID).
		Str("day", day.String()).
		Int("appointments", len(booked)).
		Msg("agenda day seeded")
	return nil
}

func ptr[T any](v T) *T { return &v }
