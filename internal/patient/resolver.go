package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/dental-agenda/internal/metrics"
)

// Resolver turns references into canonical ids and ids into display names.
// Every directory call is bounded by timeout.
type Resolver struct {
	dir     Directory
	timeout time.Duration
}

func NewResolver(dir Directory, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{dir: dir, timeout: timeout}
}

// Resolve returns the canonical patient id for ref. A literal id is returned
// as is without touching the directory. Text must match a candidate's full
// name after normalization; failing that, its identity document or phone.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (int64, error) {
	if id, ok := ref.ID(); ok {
		metrics.RecordResolution("literal")
		return id, nil
	}

	text, ok := ref.Text()
	query := Normalize(text)
	if !ok || query == "" {
		metrics.RecordResolution("not_found")
		return 0, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	candidates, err := r.dir.SearchByText(ctx, query)
	if err != nil {
		metrics.RecordResolution("unavailable")
		return 0, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}

	if id, ok := matchFullName(query, candidates); ok {
		metrics.RecordResolution("name")
		return id, nil
	}
	if id, ok := matchContact(query, candidates); ok {
		metrics.RecordResolution("contact")
		return id, nil
	}

	metrics.RecordResolution("not_found")
	return 0, ErrNotFound
}

// DisplayName fetches the patient's current full name.
func (r *Resolver) DisplayName(ctx context.Context, id int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.dir.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	return p.FullName(), nil
}

func matchFullName(query string, candidates []Patient) (int64, bool) {
	for _, c := range candidates {
		if Normalize(c.FullName()) == query {
			return c.ID, true
		}
	}
	return 0, false
}

func matchContact(query string, candidates []Patient) (int64, bool) {
	for _, c := range candidates {
		if c.DocumentID != nil && Normalize(*c.DocumentID) == query {
			return c.ID, true
		}
		if c.Phone != nil && Normalize(*c.Phone) == query {
			return c.ID, true
		}
	}
	return 0, false
}
