package audit

import (
	"context"
	"encoding/json"
	"time"
)

// SystemActor is recorded when no authenticated caller triggered the action.
const SystemActor = "SYSTEM"

const (
	ActionInventoryReserve = "inventory.reserve"
	ActionInventoryRelease = "inventory.release"
	ActionInventoryAdjust  = "inventory.adjust"
	// ActionInventoryReleaseFailed marks stock owed back to the ledger that could not be
	// returned; these entries are the reconciliation queue.
	ActionInventoryReleaseFailed = "inventory.release_failed"
	ActionOrderCreate      = "order.create"
	ActionOrderTransition  = "order.transition"
	ActionOrderReleaseOwed = "order.release_owed"
	ActionReturnCreate     = "return.create"
	ActionReturnTransition = "return.transition"
	ActionReturnRestock    = "return.restock"
	ActionScopesReplace    = "user.scopes.replace"
)

const (
	TargetOrder     = "order"
	TargetVariant   = "inventory_variant"
	TargetReturn    = "return_request"
	TargetUserScope = "user_scopes"
)

// Entry is immutable once appended.
type Entry struct {
	ID            string          `json:"id"`
	Action        string          `json:"action"`
	Actor         string          `json:"actor"`
	TargetType    string          `json:"target_type"`
	TargetID      string          `json:"target_id"`
	Before        json.RawMessage `json:"before,omitempty"`
	After         json.RawMessage `json:"after,omitempty"`
	CorrelationID string          `json:"correlation_id"`
	IP            string          `json:"ip,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Filter narrows List; empty fields match everything.
type Filter struct {
	TargetType    string
	TargetID      string
	CorrelationID string
	Limit         int
}

func (f Filter) Matches(e Entry) bool {
	if f.TargetType != "" && f.TargetType != e.TargetType {
		return false
	}
	if f.TargetID != "" && f.TargetID != e.TargetID {
		return false
	}
	if f.CorrelationID != "" && f.CorrelationID != e.CorrelationID {
		return false
	}
	return true
}

// Store is append-only: there is no update or delete.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Meta is the caller network/agent metadata attached to entries.
type Meta struct {
	CorrelationID string
	IP            string
	UserAgent     string
}

type metaKey struct{}

func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}
