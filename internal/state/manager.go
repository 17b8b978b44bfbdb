// Package state holds the in-memory mirror of the checklist collection
// and mediates every mutation through the persistence store. Presentation
// code reads the mirror and invokes the operations; it never touches
// storage directly.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aidventure/packlist/internal/ident"
	"github.com/aidventure/packlist/internal/model"
	"github.com/aidventure/packlist/internal/storage"
)

var (
	// ErrChecklistNotFound means a mutation referenced a checklist id not
	// present in the in-memory collection. Raised before any storage call.
	ErrChecklistNotFound = errors.New("checklist not found")
	// ErrItemNotFound means the referenced item is absent from its parent
	// checklist.
	ErrItemNotFound = errors.New("item not found")
)

// Manager is the authoritative in-memory view. It subscribes to the store
// once, for the life of the process; that subscription is how writes from
// other processes sharing the medium become visible. Reconciliation is
// last-write-wins, no merge.
type Manager struct {
	store    storage.API
	log      *zap.Logger
	validate *validator.Validate

	mu         sync.Mutex
	checklists []model.Checklist
	currentID  string
	loading    bool
	lastErr    string

	watchMu  sync.Mutex
	watchID  int
	watchers map[int]func()
}

// New builds a manager bound to the given store and subscribes it to
// change notifications.
func New(store storage.API, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		store:    store,
		log:      log,
		validate: validator.New(),
		watchers: map[int]func(){},
	}
	// Held for the process lifetime; never torn down.
	store.OnChange(m.reconcile)
	return m
}

// --- observable state -------------------------------------------------

// Checklists returns a copy of the in-memory collection.
func (m *Manager) Checklists() []model.Checklist {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Checklist, len(m.checklists))
	for i, c := range m.checklists {
		out[i] = c.Clone()
	}
	return out
}

// CurrentChecklistID returns the selected checklist id, "" when none.
func (m *Manager) CurrentChecklistID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

// CurrentChecklist returns a copy of the selected checklist, or nil.
func (m *Manager) CurrentChecklist() *model.Checklist {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentID == "" {
		return nil
	}
	if i := m.indexOf(m.currentID); i >= 0 {
		c := m.checklists[i].Clone()
		return &c
	}
	return nil
}

// IsLoading reports whether an operation is in flight.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Err returns the last recorded error message, "" when none.
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Watch registers fn to run after every state change. Cancel is idempotent.
func (m *Manager) Watch(fn func()) (cancel func()) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	id := m.watchID
	m.watchID++
	m.watchers[id] = fn
	return func() {
		m.watchMu.Lock()
		defer m.watchMu.Unlock()
		delete(m.watchers, id)
	}
}

func (m *Manager) notify() {
	m.watchMu.Lock()
	fns := make([]func(), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.watchMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// --- checklist operations ---------------------------------------------

// LoadChecklists replaces the in-memory collection wholesale from storage.
// Failures are absorbed into Err so startup never crashes on a bad medium.
func (m *Manager) LoadChecklists(ctx context.Context) {
	m.begin()
	lists, err := m.store.GetAll(ctx)

	m.mu.Lock()
	if err != nil {
		m.lastErr = err.Error()
		m.log.Warn("load checklists failed", zap.Error(err))
	} else {
		m.checklists = lists
	}
	m.loading = false
	m.mu.Unlock()
	m.notify()
}

// CreateChecklist persists a new empty checklist, appends it to the
// collection, and selects it.
func (m *Manager) CreateChecklist(ctx context.Context, name string) (model.Checklist, error) {
	c := model.Checklist{
		ID:    ident.NewID(),
		Name:  strings.TrimSpace(name),
		Items: []model.Item{},
	}
	if err := m.validate.Struct(c); err != nil {
		return model.Checklist{}, fmt.Errorf("invalid checklist: %w", err)
	}

	m.begin()
	if err := m.store.Save(ctx, &c); err != nil {
		return model.Checklist{}, m.fail("create checklist", err)
	}

	m.mu.Lock()
	// The store already delivered our own create event, so the entry is
	// usually present; upsert keeps ids unique either way.
	if i := m.indexOf(c.ID); i >= 0 {
		m.checklists[i] = c.Clone()
	} else {
		m.checklists = append(m.checklists, c.Clone())
	}
	m.currentID = c.ID
	m.loading = false
	m.mu.Unlock()
	m.notify()
	return c, nil
}

// UpdateChecklist saves the given value as-is and replaces the matching
// in-memory entry. Item-level operations all funnel through here; storage
// only ever sees whole checklists.
func (m *Manager) UpdateChecklist(ctx context.Context, c model.Checklist) error {
	if err := m.validate.Struct(c); err != nil {
		return fmt.Errorf("invalid checklist: %w", err)
	}

	m.begin()
	saved := c.Clone()
	if err := m.store.Save(ctx, &saved); err != nil {
		return m.fail("update checklist", err)
	}

	m.mu.Lock()
	if i := m.indexOf(saved.ID); i >= 0 {
		m.checklists[i] = saved
	}
	m.loading = false
	m.mu.Unlock()
	m.notify()
	return nil
}

// DeleteChecklist removes the checklist from storage and memory, clearing
// the selection if it pointed at the deleted id.
func (m *Manager) DeleteChecklist(ctx context.Context, id string) error {
	m.begin()
	if err := m.store.Delete(ctx, id); err != nil {
		return m.fail("delete checklist", err)
	}

	m.mu.Lock()
	m.removeLocked(id)
	m.loading = false
	m.mu.Unlock()
	m.notify()
	return nil
}

// SetCurrentChecklist changes the selection. "" clears it. Pure in-memory,
// cannot fail.
func (m *Manager) SetCurrentChecklist(id string) {
	m.mu.Lock()
	m.currentID = id
	m.mu.Unlock()
	m.notify()
}

// --- item operations ----------------------------------------------------

// AddItem assigns the item a fresh id and appends it to the checklist.
// There is no item-level persistence; the whole checklist is saved.
func (m *Manager) AddItem(ctx context.Context, checklistID string, item model.Item) error {
	c, err := m.lookup(checklistID)
	if err != nil {
		return err
	}
	item.ID = ident.NewID()
	item.Name = strings.TrimSpace(item.Name)
	if err := m.validate.Struct(item); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}
	c.Items = append(c.Items, item)
	return m.UpdateChecklist(ctx, c)
}

// UpdateItem applies the patch to the matching item and saves the whole
// checklist. An unknown item id leaves the items untouched, matching the
// map-over-items semantics of the other item operations.
func (m *Manager) UpdateItem(ctx context.Context, checklistID, itemID string, patch model.ItemPatch) error {
	c, err := m.lookup(checklistID)
	if err != nil {
		return err
	}
	for i, it := range c.Items {
		if it.ID == itemID {
			c.Items[i] = patch.Apply(it)
		}
	}
	return m.UpdateChecklist(ctx, c)
}

// DeleteItem filters the item out and saves the whole checklist.
func (m *Manager) DeleteItem(ctx context.Context, checklistID, itemID string) error {
	c, err := m.lookup(checklistID)
	if err != nil {
		return err
	}
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	return m.UpdateChecklist(ctx, c)
}

// ToggleItemComplete flips the item's completed flag.
func (m *Manager) ToggleItemComplete(ctx context.Context, checklistID, itemID string) error {
	c, err := m.lookup(checklistID)
	if err != nil {
		return err
	}
	i := c.FindItem(itemID)
	if i < 0 {
		return fmt.Errorf("toggle item %s: %w", itemID, ErrItemNotFound)
	}
	return m.UpdateItem(ctx, checklistID, itemID, model.ItemPatch{
		Completed: model.Ptr(!c.Items[i].Completed),
	})
}

// SetAllCompleted marks every item done (or resets them) in one save, so
// a bulk toggle produces a single change event.
func (m *Manager) SetAllCompleted(ctx context.Context, checklistID string, done bool) error {
	c, err := m.lookup(checklistID)
	if err != nil {
		return err
	}
	for i := range c.Items {
		c.Items[i].Completed = done
	}
	return m.UpdateChecklist(ctx, c)
}

// --- internals ----------------------------------------------------------

func (m *Manager) begin() {
	m.mu.Lock()
	m.loading = true
	m.lastErr = ""
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) fail(op string, err error) error {
	m.mu.Lock()
	m.lastErr = err.Error()
	m.loading = false
	m.mu.Unlock()
	m.log.Warn(op+" failed", zap.Error(err))
	m.notify()
	return err
}

// lookup returns a mutable copy of the checklist or ErrChecklistNotFound,
// without touching storage.
func (m *Manager) lookup(id string) (model.Checklist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(id); i >= 0 {
		return m.checklists[i].Clone(), nil
	}
	return model.Checklist{}, fmt.Errorf("checklist %s: %w", id, ErrChecklistNotFound)
}

func (m *Manager) indexOf(id string) int {
	for i, c := range m.checklists {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) removeLocked(id string) {
	if i := m.indexOf(id); i >= 0 {
		m.checklists = append(m.checklists[:i], m.checklists[i+1:]...)
	}
	if m.currentID == id {
		m.currentID = ""
	}
}

// reconcile applies a store change event to the mirror. It runs for events
// this manager caused too; replacing an entry with its just-saved value is
// a harmless no-op, and an unknown id on create/update is appended so
// another process's checklists show up here.
func (m *Manager) reconcile(ev storage.ChangeEvent) {
	m.mu.Lock()
	switch ev.Type {
	case storage.ChangeCreate, storage.ChangeUpdate:
		if ev.Checklist == nil {
			break
		}
		c := ev.Checklist.Clone()
		if i := m.indexOf(ev.ChecklistID); i >= 0 {
			m.checklists[i] = c
		} else {
			m.checklists = append(m.checklists, c)
		}
	case storage.ChangeDelete:
		m.removeLocked(ev.ChecklistID)
	}
	m.mu.Unlock()
	m.notify()
}
