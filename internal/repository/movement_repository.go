package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-reconciler/internal/domain"
)

// MovementRepository encapsulates the append-only movement log.
type MovementRepository interface {
	Insert(ctx context.Context, movement *domain.Movement) error
	// ExistsNear reports whether a movement with the same natural key already
	// sits within the tolerance window around occurredAt. Absorbs batch-timing
	// jitter from source systems.
	ExistsNear(ctx context.Context, requestID int64, from, to domain.SupportLevel, occurredAt time.Time, window time.Duration) (bool, error)
	// ListTransitions returns every movement whose level actually changed,
	// oldest first. Input to the escalation deriver.
	ListTransitions(ctx context.Context) ([]domain.Movement, error)
}

type movementRepository struct {
	pool *pgxpool.Pool
}

// NewMovementRepository instantiates repository.
func NewMovementRepository(pool *pgxpool.Pool) MovementRepository {
	return &movementRepository{pool: pool}
}

func (r *movementRepository) Insert(ctx context.Context, movement *domain.Movement) error {
	const query = `
        INSERT INTO movements (request_id, external_id, source, from_level, to_level, from_status, to_status, changed_by, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (request_id, from_level, to_level, occurred_at) DO NOTHING
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		movement.RequestID,
		movement.ExternalID,
		movement.Source,
		movement.FromLevel,
		movement.ToLevel,
		movement.FromStatus,
		movement.ToStatus,
		movement.ChangedBy,
		movement.OccurredAt,
	).Scan(&movement.ID)
	if err == pgx.ErrNoRows {
		// Exact natural-key duplicate; the log already has this row.
		return nil
	}
	return err
}

func (r *movementRepository) ExistsNear(ctx context.Context, requestID int64, from, to domain.SupportLevel, occurredAt time.Time, window time.Duration) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM movements
            WHERE request_id=$1 AND from_level=$2 AND to_level=$3
              AND occurred_at BETWEEN $4::timestamptz - $5::interval AND $4::timestamptz + $5::interval
        )`
	var exists bool
	err := r.pool.QueryRow(ctx, query, requestID, from, to, occurredAt, window.String()).Scan(&exists)
	return exists, err
}

func (r *movementRepository) ListTransitions(ctx context.Context) ([]domain.Movement, error) {
	const query = `
        SELECT id, request_id, external_id, source, from_level, to_level, from_status, to_status, changed_by, occurred_at
        FROM movements
        WHERE from_level <> to_level
        ORDER BY occurred_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Movement
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(
			&m.ID,
			&m.RequestID,
			&m.ExternalID,
			&m.Source,
			&m.FromLevel,
			&m.ToLevel,
			&m.FromStatus,
			&m.ToStatus,
			&m.ChangedBy,
			&m.OccurredAt,
		); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
