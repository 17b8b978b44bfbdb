package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidventure/packlist/internal/ident"
	"github.com/aidventure/packlist/internal/kv"
	"github.com/aidventure/packlist/internal/model"
)

// failingMedium wraps a medium and rejects writes on demand.
type failingMedium struct {
	kv.Medium
	failSet bool
}

func (f *failingMedium) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errors.New("medium full")
	}
	return f.Medium.Set(ctx, key, value)
}

func newChecklist(name string) model.Checklist {
	return model.Checklist{ID: ident.NewID(), Name: name, Items: []model.Item{}}
}

func TestGetAllEmpty(t *testing.T) {
	s := New(kv.NewMemory(), nil)
	lists, err := s.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestSaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), nil)

	c := newChecklist("Expedition")
	c.Items = []model.Item{
		{ID: ident.NewID(), Name: "Headlamp", Category: "Lighting", Quantity: 2, Priority: model.PriorityHigh},
		{ID: ident.NewID(), Name: "Map case", Category: "Navigation", Notes: "waterproof", Completed: true},
	}
	require.NoError(t, s.Save(ctx, &c))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "Expedition", got.Name)
	assert.Equal(t, c.Items, got.Items)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestGetUnknownReturnsAbsent(t *testing.T) {
	s := New(kv.NewMemory(), nil)
	got, err := s.Get(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSavePreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), nil)

	c := newChecklist("Race")
	require.NoError(t, s.Save(ctx, &c))
	created := c.CreatedAt
	firstUpdated := c.UpdatedAt

	time.Sleep(5 * time.Millisecond)

	// A caller trying to rewrite CreatedAt is ignored.
	c.Name = "Race v2"
	c.CreatedAt = time.Now().Add(time.Hour)
	require.NoError(t, s.Save(ctx, &c))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.False(t, got.UpdatedAt.Before(firstUpdated))
	assert.True(t, got.UpdatedAt.After(firstUpdated))
}

func TestChangeEventsInOrder(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), nil)

	var events []ChangeEvent
	s.OnChange(func(ev ChangeEvent) { events = append(events, ev) })

	c := newChecklist("Race")
	require.NoError(t, s.Save(ctx, &c))
	c.Name = "Renamed"
	require.NoError(t, s.Save(ctx, &c))
	require.NoError(t, s.Delete(ctx, c.ID))

	require.Len(t, events, 3)
	assert.Equal(t, ChangeCreate, events[0].Type)
	require.NotNil(t, events[0].Checklist)
	assert.Equal(t, "Race", events[0].Checklist.Name)
	assert.Equal(t, ChangeUpdate, events[1].Type)
	require.NotNil(t, events[1].Checklist)
	assert.Equal(t, "Renamed", events[1].Checklist.Name)
	assert.Equal(t, ChangeDelete, events[2].Type)
	assert.Equal(t, c.ID, events[2].ChecklistID)
	assert.Nil(t, events[2].Checklist)
}

func TestDeleteAbsentIsSilentNoop(t *testing.T) {
	s := New(kv.NewMemory(), nil)

	fired := 0
	s.OnChange(func(ChangeEvent) { fired++ })

	require.NoError(t, s.Delete(context.Background(), "no-such-id"))
	assert.Zero(t, fired)
}

func TestCreateDeleteGetAbsent(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), nil)

	c := newChecklist("Short-lived")
	require.NoError(t, s.Save(ctx, &c))
	require.NoError(t, s.Delete(ctx, c.ID))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), nil)

	fired := 0
	cancel := s.OnChange(func(ChangeEvent) { fired++ })
	cancel()
	cancel() // idempotent

	c := newChecklist("Race")
	require.NoError(t, s.Save(ctx, &c))
	assert.Zero(t, fired)
}

func TestVersionMismatchReadsEmpty(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	raw := []byte(`{"version":"0.9","checklists":{"a":{"id":"a","name":"old"}}}`)
	require.NoError(t, mem.Set(ctx, storageKey, raw))

	s := New(mem, nil)
	lists, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestCorruptRecordReadsEmpty(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, storageKey, []byte("not json at all")))

	s := New(mem, nil)
	lists, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists)

	got, err := s.Get(ctx, "anything")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWriteFailureLeavesRecordUnchanged(t *testing.T) {
	ctx := context.Background()
	fm := &failingMedium{Medium: kv.NewMemory()}
	s := New(fm, nil)

	c := newChecklist("Race")
	require.NoError(t, s.Save(ctx, &c))

	fired := 0
	s.OnChange(func(ChangeEvent) { fired++ })

	fm.failSet = true

	renamed := c.Clone()
	renamed.Name = "Should not stick"
	err := s.Save(ctx, &renamed)
	var werr *WriteError
	require.ErrorAs(t, err, &werr)

	other := newChecklist("Also rejected")
	require.Error(t, s.Delete(ctx, c.ID))
	require.Error(t, s.Save(ctx, &other))
	assert.Zero(t, fired)

	fm.failSet = false
	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Race", got.Name)

	lists, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, lists, 1)
}

func TestExternalChangeSynthesizesEvents(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem, nil)

	// Prime the known record.
	_, err := s.GetAll(ctx)
	require.NoError(t, err)

	var events []ChangeEvent
	s.OnChange(func(ev ChangeEvent) { events = append(events, ev) })

	now := time.Now().UTC().Truncate(time.Second)
	ext := model.Checklist{
		ID: "ext-1", Name: "From another tab",
		CreatedAt: now, UpdatedAt: now,
		Items: []model.Item{},
	}
	encode := func(m map[string]model.Checklist) []byte {
		raw, err := json.Marshal(record{Version: formatVersion, Checklists: m})
		require.NoError(t, err)
		return raw
	}

	mem.SetExternal(storageKey, encode(map[string]model.Checklist{ext.ID: ext}))
	require.Len(t, events, 1)
	assert.Equal(t, ChangeCreate, events[0].Type)
	require.NotNil(t, events[0].Checklist)
	assert.Equal(t, "From another tab", events[0].Checklist.Name)

	// Restamped UpdatedAt marks an update.
	ext.Name = "Renamed elsewhere"
	ext.UpdatedAt = now.Add(time.Second)
	mem.SetExternal(storageKey, encode(map[string]model.Checklist{ext.ID: ext}))
	require.Len(t, events, 2)
	assert.Equal(t, ChangeUpdate, events[1].Type)

	// Removal shows up as a delete carrying only the id.
	mem.SetExternal(storageKey, encode(map[string]model.Checklist{}))
	require.Len(t, events, 3)
	assert.Equal(t, ChangeDelete, events[2].Type)
	assert.Equal(t, ext.ID, events[2].ChecklistID)
	assert.Nil(t, events[2].Checklist)

	// The externally created checklist is readable locally.
	lists, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestSaveStampsCallerValue(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), nil)

	c := newChecklist("Race")
	require.True(t, c.CreatedAt.IsZero())
	require.NoError(t, s.Save(ctx, &c))
	assert.False(t, c.CreatedAt.IsZero())
	assert.True(t, c.CreatedAt.Equal(c.UpdatedAt))
}
