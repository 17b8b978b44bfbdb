package kv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	got, err := f.Get(ctx, "lists")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, f.Set(ctx, "lists", []byte(`{"a":1}`)))
	got, err = f.Get(ctx, "lists")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	require.NoError(t, f.Set(ctx, "lists", []byte(`{"a":2}`)))
	got, err = f.Get(ctx, "lists")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), got)

	require.NoError(t, f.Delete(ctx, "lists"))
	got, err = f.Get(ctx, "lists")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent key stays silent.
	require.NoError(t, f.Delete(ctx, "lists"))
}

func TestFileQuota(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(t.TempDir(), WithQuota(4))
	require.NoError(t, err)

	require.NoError(t, f.Set(ctx, "k", []byte("ok")))
	err = f.Set(ctx, "k", []byte("too large for the quota"))
	require.ErrorIs(t, err, ErrQuotaExceeded)

	got, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
}

func TestFileWatchSeesForeignWrites(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	defer f.Close()

	var mu sync.Mutex
	var seen [][]byte
	cancel, err := f.Watch("lists", func(v []byte) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, v)
	})
	require.NoError(t, err)
	defer cancel()

	// Simulate another process writing the same key's file.
	foreign := filepath.Join(dir, "lists.json")
	require.NoError(t, os.WriteFile(foreign, []byte(`{"v":"theirs"}`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 1
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []byte(`{"v":"theirs"}`), seen[0])
	mu.Unlock()
}

func TestFileWatchIgnoresOwnWrites(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	defer f.Close()

	var mu sync.Mutex
	fired := 0
	cancel, err := f.Watch("lists", func([]byte) {
		mu.Lock()
		defer mu.Unlock()
		fired++
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, f.Set(ctx, "lists", []byte("self")))
	require.NoError(t, f.Delete(ctx, "lists"))

	// Give fsnotify time to deliver anything it was going to.
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, fired)
	mu.Unlock()
}

func TestFileSetRenameFailureDoesNotPoisonWatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	defer f.Close()

	var mu sync.Mutex
	var seen [][]byte
	cancel, err := f.Watch("lists", func(v []byte) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, v)
	})
	require.NoError(t, err)
	defer cancel()

	// Occupy the key's path with a directory so the rename cannot land.
	target := filepath.Join(dir, "lists.json")
	require.NoError(t, os.Mkdir(target, 0o755))
	payload := []byte(`{"v":"contested"}`)
	require.Error(t, f.Set(ctx, "lists", payload))

	// Another process then writes the exact content the failed Set carried;
	// it must reach the watcher instead of being suppressed as a self-write.
	require.NoError(t, os.Remove(target))
	require.NoError(t, os.WriteFile(target, payload, 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, v := range seen {
			if bytes.Equal(v, payload) {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}
