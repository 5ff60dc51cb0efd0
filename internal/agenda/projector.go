package agenda

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/dental-agenda/internal/metrics"
)

// NameLookup supplies a patient's current display name.
type NameLookup interface {
	DisplayName(ctx context.Context, patientID int64) (string, error)
}

type DayView struct {
	PractitionerID int64
	Day            Day
	Items          []Appointment
	Counts         map[Status]int
	// Total counts every item except AVAILABLE placeholders.
	Total int
}

// Projector builds read-only day views enriched with patient names.
type Projector struct {
	store       Store
	names       NameLookup
	logger      zerolog.Logger
	concurrency int
}

func NewProjector(store Store, names NameLookup, logger zerolog.Logger, concurrency int) *Projector {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Projector{
		store:       store,
		names:       names,
		logger:      logger.With().Str("component", "projector").Logger(),
		concurrency: concurrency,
	}
}

// DayView returns the day's appointments in time order. Names missing from
// the records are looked up once per distinct patient; a failed lookup leaves
// that name blank instead of failing the view.
func (p *Projector) DayView(ctx context.Context, practitionerID int64, day Day) (*DayView, error) {
	if practitionerID <= 0 {
		return nil, ErrPractitionerRequired
	}

	items, err := p.store.GetDay(ctx, practitionerID, day)
	if err != nil {
		return nil, fmt.Errorf("load day: %w", err)
	}

	names := p.lookupNames(ctx, missingNames(items))
	for i := range items {
		if items[i].PatientName == "" {
			items[i].PatientName = names[items[i].PatientID]
		}
	}

	view := &DayView{
		PractitionerID: practitionerID,
		Day:            day,
		Items:          items,
		Counts:         make(map[Status]int, len(Statuses)),
	}
	for _, a := range items {
		view.Counts[a.Status]++
		if a.Status != StatusAvailable {
			view.Total++
		}
	}

	return view, nil
}

func missingNames(items []Appointment) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, a := range items {
		if a.PatientName != "" || a.PatientID <= 0 {
			continue
		}
		if _, ok := seen[a.PatientID]; ok {
			continue
		}
		seen[a.PatientID] = struct{}{}
		ids = append(ids, a.PatientID)
	}
	return ids
}

func (p *Projector) lookupNames(ctx context.Context, ids []int64) map[int64]string {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 || p.names == nil {
		return names
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			name, err := p.names.DisplayName(ctx, id)
			if err != nil {
				metrics.RecordEnrichmentFailure()
				p.logger.Warn().Err(err).Int64("patient_id", id).Msg("patient name lookup failed")
				return nil
			}
			mu.Lock()
			names[id] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return names
}
