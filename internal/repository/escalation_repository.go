package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-reconciler/internal/domain"
)

// EscalationRepository encapsulates the derived escalation ledger.
type EscalationRepository interface {
	// Insert appends an escalation, deduplicated on its natural key.
	// Returns false when the row already existed.
	Insert(ctx context.Context, escalation *domain.Escalation) (bool, error)
	ListByRequest(ctx context.Context, requestID int64) ([]domain.Escalation, error)
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository instantiates repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

func (r *escalationRepository) Insert(ctx context.Context, escalation *domain.Escalation) (bool, error) {
	const query = `
        INSERT INTO escalations (request_id, from_level, to_level, occurred_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (request_id, from_level, to_level, occurred_at) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		escalation.RequestID,
		escalation.FromLevel,
		escalation.ToLevel,
		escalation.OccurredAt,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *escalationRepository) ListByRequest(ctx context.Context, requestID int64) ([]domain.Escalation, error) {
	const query = `
        SELECT id, request_id, from_level, to_level, occurred_at, created_at
        FROM escalations WHERE request_id=$1 ORDER BY occurred_at ASC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Escalation
	for rows.Next() {
		var e domain.Escalation
		if err := rows.Scan(&e.ID, &e.RequestID, &e.FromLevel, &e.ToLevel, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
