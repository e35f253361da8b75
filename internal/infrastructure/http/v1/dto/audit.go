package dto

import (
	"encoding/json"
	"time"

	"apothek/internal/domain/audit"
)

// --- Response DTOs ---

type AuditEntryResponse struct {
	ID          string          `json:"id"`
	BranchID    string          `json:"branchId"`
	ActorUserID string          `json:"actorUserId"`
	ActionType  string          `json:"actionType"`
	EntityType  string          `json:"entityType"`
	EntityID    string          `json:"entityId"`
	Description string          `json:"description"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// FromAuditEntry creates AuditEntryResponse from an entry.
func FromAuditEntry(e *audit.Entry) *AuditEntryResponse {
	return &AuditEntryResponse{
		ID:          e.ID.String(),
		BranchID:    e.BranchID,
		ActorUserID: e.ActorUserID,
		ActionType:  string(e.ActionType),
		EntityType:  string(e.EntityType),
		EntityID:    e.EntityID.String(),
		Description: e.Description,
		Details:     e.Details,
		CreatedAt:   e.CreatedAt,
	}
}

type AuditListResponse struct {
	Items      []*AuditEntryResponse `json:"items"`
	TotalCount int                   `json:"totalCount"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}
