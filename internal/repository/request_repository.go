package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-reconciler/internal/domain"
)

// RequestRepository encapsulates canonical request persistence.
type RequestRepository interface {
	GetByExternalID(ctx context.Context, externalID, source string) (*domain.CanonicalRequest, error)
	GetByID(ctx context.Context, id int64) (*domain.CanonicalRequest, error)
	Upsert(ctx context.Context, req *domain.CanonicalRequest) error
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, external_id, source, title, description, status, priority, category,
       requester_email, assignee, support_level, team, linkage_ref, created_at, updated_at, resolved_at`

// GetByExternalID returns the canonical record for (externalID, source), or
// nil when the pair has never been seen.
func (r *requestRepository) GetByExternalID(ctx context.Context, externalID, source string) (*domain.CanonicalRequest, error) {
	const query = `SELECT ` + requestColumns + ` FROM canonical_requests WHERE external_id=$1 AND source=$2`
	req, err := r.fetchSingle(ctx, query, externalID, source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*domain.CanonicalRequest, error) {
	const query = `SELECT ` + requestColumns + ` FROM canonical_requests WHERE id=$1`
	req, err := r.fetchSingle(ctx, query, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

// Upsert writes the record keyed by (external_id, source). The support level
// ratchet is applied once more at the SQL layer so overlapping sync runs
// cannot lower a stored level between the engine's read and its write.
func (r *requestRepository) Upsert(ctx context.Context, req *domain.CanonicalRequest) error {
	const query = `
        INSERT INTO canonical_requests
            (external_id, source, title, description, status, priority, category,
             requester_email, assignee, support_level, team, linkage_ref, created_at, updated_at, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        ON CONFLICT (external_id, source) DO UPDATE SET
            title=EXCLUDED.title,
            description=EXCLUDED.description,
            status=EXCLUDED.status,
            priority=EXCLUDED.priority,
            category=EXCLUDED.category,
            requester_email=EXCLUDED.requester_email,
            assignee=EXCLUDED.assignee,
            support_level=CASE
                WHEN ARRAY_POSITION(ARRAY['L1','L2','L3','L4'], EXCLUDED.support_level)
                   > ARRAY_POSITION(ARRAY['L1','L2','L3','L4'], canonical_requests.support_level)
                THEN EXCLUDED.support_level
                ELSE canonical_requests.support_level
            END,
            team=EXCLUDED.team,
            linkage_ref=COALESCE(EXCLUDED.linkage_ref, canonical_requests.linkage_ref),
            updated_at=EXCLUDED.updated_at,
            resolved_at=EXCLUDED.resolved_at
        RETURNING id, support_level, created_at`
	return r.pool.QueryRow(ctx, query,
		req.ExternalID,
		req.Source,
		req.Title,
		req.Description,
		req.Status,
		req.Priority,
		req.Category,
		req.RequesterEmail,
		req.Assignee,
		req.SupportLevel,
		req.Team,
		req.LinkageRef,
		req.CreatedAt,
		req.UpdatedAt,
		req.ResolvedAt,
	).Scan(&req.ID, &req.SupportLevel, &req.CreatedAt)
}

func (r *requestRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.CanonicalRequest, error) {
	var req domain.CanonicalRequest
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&req.ID,
		&req.ExternalID,
		&req.Source,
		&req.Title,
		&req.Description,
		&req.Status,
		&req.Priority,
		&req.Category,
		&req.RequesterEmail,
		&req.Assignee,
		&req.SupportLevel,
		&req.Team,
		&req.LinkageRef,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
