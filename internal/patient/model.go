package patient

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound             = errors.New("patient not found")
	ErrDirectoryUnavailable = errors.New("patient directory unavailable")
)

// Patient is the directory's view of a person. The agenda only ever reads it.
type Patient struct {
	ID         int64
	FirstName  string
	LastName   string
	DocumentID *string
	Phone      *string
	Email      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FullName joins first and last name the way the clinic displays them.
func (p Patient) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// Directory is the external system of record for patient identity.
type Directory interface {
	FindByID(ctx context.Context, id int64) (*Patient, error)
	// SearchByText returns candidates in directory order. Matching on the
	// returned rows is the caller's job.
	SearchByText(ctx context.Context, query string) ([]Patient, error)
}
