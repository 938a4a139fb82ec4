package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// AuditEntityWallet is the entity type recorded for wallet changes.
const AuditEntityWallet = "wallet"

// AuditLog records a single audited change made by an actor.
type AuditLog struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    uuid.UUID      `json:"actor_id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     AuditAction    `json:"action"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewWalletAudit builds an audit entry for a wallet change.
func NewWalletAudit(actorID, walletID uuid.UUID, action AuditAction, changes map[string]any) *AuditLog {
	return &AuditLog{
		ID:         uuid.New(),
		ActorID:    actorID,
		EntityType: AuditEntityWallet,
		EntityID:   walletID.String(),
		Action:     action,
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
}
