package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const searchLimit = 20

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.DocumentID,
		&p.Phone,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (d *PgDirectory) FindByID(ctx context.Context, id int64) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, document_id, phone, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// SearchByText narrows candidates in SQL. patient_search_key mirrors Normalize
// (trim, unaccent, lower, ß folding, collapsed spaces) on both the stored
// values and the query, and exact key matches sort ahead of substring hits so
// the limit never drops them.
func (d *PgDirectory) SearchByText(ctx context.Context, query string) ([]Patient, error) {
	rows, err := d.pool.Query(ctx, `
		WITH q AS (SELECT patient_search_key($1) AS key)
		SELECT p.id, p.first_name, p.last_name, p.document_id, p.phone, p.email, p.created_at, p.updated_at
		FROM patients p
		CROSS JOIN q
		CROSS JOIN LATERAL (
			SELECT patient_search_key(p.first_name || ' ' || p.last_name) AS name_key,
			       patient_search_key(p.document_id) AS document_key,
			       patient_search_key(p.phone) AS phone_key
		) k
		WHERE k.name_key LIKE '%' || q.key || '%'
		   OR k.document_key = q.key
		   OR k.phone_key = q.key
		ORDER BY (k.name_key = q.key) DESC,
		         COALESCE(k.document_key = q.key OR k.phone_key = q.key, false) DESC,
		         p.last_name, p.first_name, p.id
		LIMIT $2
	`, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Insert adds a patient row. Used by the seed tool; the agenda never writes patients.
func (d *PgDirectory) Insert(ctx context.Context, p Patient) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `
		INSERT INTO patients (first_name, last_name, document_id, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, first_name, last_name, document_id, phone, email, created_at, updated_at
	`, p.FirstName, p.LastName, p.DocumentID, p.Phone, p.Email)
	return scanPatient(row)
}
