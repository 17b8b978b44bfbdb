package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aidventure/packlist/internal/kv"
	"github.com/aidventure/packlist/internal/model"
)

const (
	// storageKey is the single medium key the whole collection lives under.
	storageKey = "aidventure_checklists"
	// formatVersion gates reads; anything else degrades to empty data.
	formatVersion = "1.0"
)

// record is the durable layout: a version tag plus checklists by id.
type record struct {
	Version    string                     `json:"version"`
	Checklists map[string]model.Checklist `json:"checklists"`
}

// Store implements API over a kv.Medium. The read-modify-write cycle of
// Save and Delete is atomic within this process; a write from another
// process landing between read and write is not detected (last-write-wins
// at whole-record granularity).
type Store struct {
	medium   kv.Medium
	log      *zap.Logger
	notifier *notifier

	mu    sync.Mutex
	known map[string]model.Checklist

	cancelWatch func()
}

// New builds a store on the given medium. When the medium can observe
// writes from other processes, those are translated into the same change
// events local writes produce, by diffing against the last known record.
func New(medium kv.Medium, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		medium:   medium,
		log:      log,
		notifier: newNotifier(),
		known:    map[string]model.Checklist{},
	}
	if w, ok := medium.(kv.Watcher); ok {
		cancel, err := w.Watch(storageKey, s.handleExternal)
		if err != nil {
			log.Warn("external change watch unavailable", zap.Error(err))
		} else {
			s.cancelWatch = cancel
		}
	}
	return s
}

// Close stops watching for external changes.
func (s *Store) Close() {
	if s.cancelWatch != nil {
		s.cancelWatch()
	}
}

// decode turns raw medium content into the checklist map. Missing data, a
// version mismatch, or corrupt JSON all read as empty; reads stay total
// over arbitrary medium content.
func (s *Store) decode(raw []byte) map[string]model.Checklist {
	if len(raw) == 0 {
		return map[string]model.Checklist{}
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.log.Warn("corrupt checklist record, treating as empty", zap.Error(err))
		return map[string]model.Checklist{}
	}
	if rec.Version != formatVersion {
		s.log.Warn("unrecognized record version, treating as empty",
			zap.String("version", rec.Version))
		return map[string]model.Checklist{}
	}
	if rec.Checklists == nil {
		return map[string]model.Checklist{}
	}
	return rec.Checklists
}

// load reads and decodes the record. Callers must hold s.mu.
func (s *Store) load(ctx context.Context) (map[string]model.Checklist, error) {
	raw, err := s.medium.Get(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	m := s.decode(raw)
	s.known = m
	return m, nil
}

// write encodes and stores the record. Callers must hold s.mu.
func (s *Store) write(ctx context.Context, m map[string]model.Checklist) error {
	raw, err := json.Marshal(record{Version: formatVersion, Checklists: m})
	if err != nil {
		return err
	}
	return s.medium.Set(ctx, storageKey, raw)
}

func (s *Store) GetAll(ctx context.Context) ([]model.Checklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Checklist, 0, len(m))
	for _, c := range m {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*model.Checklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := m[id]
	if !ok {
		return nil, nil
	}
	out := c.Clone()
	return &out, nil
}

// Save upserts c by id. UpdatedAt is restamped unconditionally; CreatedAt
// is preserved from the stored copy when the id already exists, so callers
// cannot rewrite it. On failure nothing is recorded and no event fires.
func (s *Store) Save(ctx context.Context, c *model.Checklist) error {
	s.mu.Lock()
	m, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return &WriteError{Op: "save", Err: err}
	}
	prev, existed := m[c.ID]

	now := time.Now().UTC()
	stamped := c.Clone()
	stamped.UpdatedAt = now
	if existed && !prev.CreatedAt.IsZero() {
		stamped.CreatedAt = prev.CreatedAt
	} else if stamped.CreatedAt.IsZero() {
		stamped.CreatedAt = now
	}

	m[c.ID] = stamped
	if err := s.write(ctx, m); err != nil {
		// Roll the in-memory record back; the durable one never changed.
		if existed {
			m[c.ID] = prev
		} else {
			delete(m, c.ID)
		}
		s.mu.Unlock()
		return &WriteError{Op: "save", Err: err}
	}
	s.mu.Unlock()

	c.CreatedAt = stamped.CreatedAt
	c.UpdatedAt = stamped.UpdatedAt

	kind := ChangeCreate
	if existed {
		kind = ChangeUpdate
	}
	payload := stamped.Clone()
	s.notifier.publish(ChangeEvent{Type: kind, ChecklistID: c.ID, Checklist: &payload})
	return nil
}

// Delete removes the checklist with the given id. An absent id succeeds
// silently and publishes nothing.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	m, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return &WriteError{Op: "delete", Err: err}
	}
	prev, ok := m[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(m, id)
	if err := s.write(ctx, m); err != nil {
		m[id] = prev
		s.mu.Unlock()
		return &WriteError{Op: "delete", Err: err}
	}
	s.mu.Unlock()

	s.notifier.publish(ChangeEvent{Type: ChangeDelete, ChecklistID: id})
	return nil
}

func (s *Store) OnChange(fn func(ChangeEvent)) func() {
	return s.notifier.subscribe(fn)
}

// handleExternal translates a raw medium change made by another process
// into structured events by diffing against the last known record. Every
// save restamps UpdatedAt, so differing timestamps mark an update.
func (s *Store) handleExternal(raw []byte) {
	next := s.decode(raw)

	s.mu.Lock()
	prev := s.known
	s.known = next
	s.mu.Unlock()

	var events []ChangeEvent
	for _, id := range sortedIDs(next) {
		cur := next[id]
		old, ok := prev[id]
		if !ok {
			c := cur.Clone()
			events = append(events, ChangeEvent{Type: ChangeCreate, ChecklistID: id, Checklist: &c})
			continue
		}
		if !old.UpdatedAt.Equal(cur.UpdatedAt) {
			c := cur.Clone()
			events = append(events, ChangeEvent{Type: ChangeUpdate, ChecklistID: id, Checklist: &c})
		}
	}
	for _, id := range sortedIDs(prev) {
		if _, ok := next[id]; !ok {
			events = append(events, ChangeEvent{Type: ChangeDelete, ChecklistID: id})
		}
	}

	for _, ev := range events {
		s.notifier.publish(ev)
	}
}

func sortedIDs(m map[string]model.Checklist) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
