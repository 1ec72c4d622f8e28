package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-reconciler/internal/domain"
)

// OrphanRepository encapsulates the L4 satellite table. Rows are appended and
// mutated, never pruned: incidents that drop out of the active queue are
// marked resolved instead of deleted.
type OrphanRepository interface {
	Upsert(ctx context.Context, incident *domain.OrphanIncident) error
	ListActive(ctx context.Context) ([]domain.OrphanIncident, error)
	// MarkResolvedExcept closes every active incident whose key is not in the
	// current sweep's active set.
	MarkResolvedExcept(ctx context.Context, activeKeys []string) (int64, error)
}

type orphanRepository struct {
	pool *pgxpool.Pool
}

// NewOrphanRepository instantiates repository.
func NewOrphanRepository(pool *pgxpool.Pool) OrphanRepository {
	return &orphanRepository{pool: pool}
}

// Upsert writes the incident keyed by incident_key. A stored team survives
// when the fresh sweep failed to resolve one: human-curated assignments win
// over a re-resolution that came back Unknown.
func (r *orphanRepository) Upsert(ctx context.Context, incident *domain.OrphanIncident) error {
	const query = `
        INSERT INTO orphan_incidents
            (incident_key, title, team, linkage_ref, linked_status, status, reassigned_to_level, first_seen_at, last_seen_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW(),NOW())
        ON CONFLICT (incident_key) DO UPDATE SET
            title=EXCLUDED.title,
            team=CASE
                WHEN EXCLUDED.team IN ('', 'Unknown', 'Unassigned')
                 AND orphan_incidents.team NOT IN ('', 'Unknown', 'Unassigned')
                THEN orphan_incidents.team
                ELSE EXCLUDED.team
            END,
            linkage_ref=COALESCE(EXCLUDED.linkage_ref, orphan_incidents.linkage_ref),
            linked_status=EXCLUDED.linked_status,
            status=EXCLUDED.status,
            reassigned_to_level=COALESCE(orphan_incidents.reassigned_to_level, EXCLUDED.reassigned_to_level),
            last_seen_at=NOW(),
            updated_at=NOW()
        RETURNING id, team, first_seen_at, last_seen_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		incident.IncidentKey,
		incident.Title,
		incident.Team,
		incident.LinkageRef,
		incident.LinkedStatus,
		incident.Status,
		incident.ReassignedToLevel,
	).Scan(&incident.ID, &incident.Team, &incident.FirstSeenAt, &incident.LastSeenAt, &incident.UpdatedAt)
}

func (r *orphanRepository) ListActive(ctx context.Context) ([]domain.OrphanIncident, error) {
	const query = `
        SELECT id, incident_key, title, team, linkage_ref, linked_status, status, reassigned_to_level,
               first_seen_at, last_seen_at, updated_at
        FROM orphan_incidents
        WHERE status NOT IN ($1, $2)
        ORDER BY first_seen_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.StatusResolved, domain.StatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OrphanIncident
	for rows.Next() {
		var o domain.OrphanIncident
		if err := rows.Scan(
			&o.ID,
			&o.IncidentKey,
			&o.Title,
			&o.Team,
			&o.LinkageRef,
			&o.LinkedStatus,
			&o.Status,
			&o.ReassignedToLevel,
			&o.FirstSeenAt,
			&o.LastSeenAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (r *orphanRepository) MarkResolvedExcept(ctx context.Context, activeKeys []string) (int64, error) {
	const query = `
        UPDATE orphan_incidents
        SET status=$1, updated_at=NOW()
        WHERE status NOT IN ($1, $2) AND NOT (incident_key = ANY($3))`
	cmd, err := r.pool.Exec(ctx, query, domain.StatusResolved, domain.StatusClosed, activeKeys)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
