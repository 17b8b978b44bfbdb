// Package storage persists the checklist collection as one versioned JSON
// record in a key-value medium and notifies subscribers of every change.
package storage

import (
	"context"
	"fmt"

	"github.com/aidventure/packlist/internal/model"
)

// ChangeType classifies what a successful write did to a checklist.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent is published after every successful write, including writes
// observed from other processes sharing the medium. Checklist is nil for
// deletes; the value no longer exists.
type ChangeEvent struct {
	Type        ChangeType
	ChecklistID string
	Checklist   *model.Checklist
}

// API is the persistence surface the state manager talks to.
type API interface {
	// GetAll returns every persisted checklist in unspecified order.
	// Corrupt or version-mismatched data reads as empty, not as an error.
	GetAll(ctx context.Context) ([]model.Checklist, error)
	// Get returns the checklist with the given id, or nil when absent.
	Get(ctx context.Context, id string) (*model.Checklist, error)
	// Save upserts by id, restamping UpdatedAt and stamping CreatedAt on
	// first persistence. The stamped values are written back into c.
	Save(ctx context.Context, c *model.Checklist) error
	// Delete removes the checklist. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error
	// OnChange registers fn for change events in occurrence order. The
	// returned cancel is idempotent.
	OnChange(fn func(ChangeEvent)) (cancel func())
}

// WriteError reports that the durable medium rejected a write. The stored
// record is unchanged when this is returned.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
