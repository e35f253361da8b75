// Package audit provides the append-only trail of mutating actions.
package audit

import (
	"encoding/json"
	"time"

	"apothek/internal/core/id"
)

// ActionType identifies the mutating operation an entry describes.
type ActionType string

const (
	ActionSaleCreated     ActionType = "sale_created"
	ActionPaymentRecorded ActionType = "payment_recorded"
	ActionReturnFlagged   ActionType = "return_flagged"
	ActionRefundIssued    ActionType = "refund_issued"
	ActionStockCreated    ActionType = "stock_created"
	ActionStockReceived   ActionType = "stock_received"
)

// EntityType identifies the entity an entry describes.
type EntityType string

const (
	EntitySale      EntityType = "sale"
	EntityPayment   EntityType = "payment"
	EntityReturn    EntityType = "return_request"
	EntityRefund    EntityType = "refund"
	EntityStockItem EntityType = "stock_item"
)

// CompressionAlgo specifies how the details payload is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// Entry is one immutable audit record. Entries are written inside the same
// database transaction as the action they describe, so the trail can never
// mention an action that did not durably happen, nor miss one that did.
// An entry's lifetime is independent of the entity it points at.
type Entry struct {
	ID                id.ID           `db:"id" json:"id"`
	BranchID          string          `db:"branch_id" json:"branchId"`
	ActorUserID       string          `db:"actor_user_id" json:"actorUserId"`
	ActionType        ActionType      `db:"action_type" json:"actionType"`
	EntityType        EntityType      `db:"entity_type" json:"entityType"`
	EntityID          id.ID           `db:"entity_id" json:"entityId"`
	Description       string          `db:"description" json:"description"`
	Details           json.RawMessage `db:"details" json:"details,omitempty"`
	DetailsCompressed []byte          `db:"details_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}
