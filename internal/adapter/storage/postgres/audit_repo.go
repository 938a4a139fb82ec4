package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a PostgreSQL-backed AuditRepository.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	changes, err := encodeJSON(log.Changes)
	if err != nil {
		return fmt.Errorf("encode audit changes: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, actor_id, entity_type, entity_id, action, changes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.ActorID, log.EntityType, log.EntityID, string(log.Action), changes, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
