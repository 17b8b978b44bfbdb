package kv

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// File is a Medium storing one file per key under a data directory.
// Writes go through a temp file plus rename so readers in other processes
// never observe a partial value, and fsnotify surfaces those processes'
// writes through Watch. A write this process made is recognized by content
// fingerprint and not reported back to its own watchers.
type File struct {
	dir   string
	quota int

	mu          sync.Mutex
	lastWritten map[string]string
	watchers    map[string]map[int]func([]byte)
	nextID      int
	fsw         *fsnotify.Watcher
}

// NewFile creates the data directory if needed and returns a medium
// rooted there.
func NewFile(dir string, opts ...Option) (*File, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kv: ensure data dir: %w", err)
	}
	return &File{
		dir:         dir,
		quota:       s.quota,
		lastWritten: map[string]string{},
		watchers:    map[string]map[int]func([]byte){},
	}, nil
}

// fingerprint of the absent value, distinct from any real content sum.
const goneFingerprint = "gone"

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func fingerprint(value []byte) string {
	if value == nil {
		return goneFingerprint
	}
	sum := sha256.Sum256(value)
	return fmt.Sprintf("%x", sum)
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv: read %s: %w", key, err)
	}
	return b, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	if f.quota > 0 && len(value) > f.quota {
		return fmt.Errorf("kv: set %s (%d bytes): %w", key, len(value), ErrQuotaExceeded)
	}
	p := f.path(key)
	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("kv: temp file: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("kv: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("kv: close %s: %w", key, err)
	}

	// Record the fingerprint before the rename lands so the fsnotify event
	// for our own write is already recognizable.
	f.mu.Lock()
	prevFP, hadFP := f.lastWritten[key]
	f.lastWritten[key] = fingerprint(value)
	f.mu.Unlock()

	if err := os.Rename(tmp.Name(), p); err != nil {
		// Nothing was written; forget the fingerprint or a later external
		// write of the same content would be suppressed as our own.
		f.mu.Lock()
		if hadFP {
			f.lastWritten[key] = prevFP
		} else {
			delete(f.lastWritten, key)
		}
		f.mu.Unlock()
		os.Remove(tmp.Name())
		return fmt.Errorf("kv: rename %s: %w", key, err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	f.lastWritten[key] = goneFingerprint
	f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}
	return nil
}

// Watch registers fn for writes to key made by other processes. The first
// call starts the directory watcher.
func (f *File) Watch(key string, fn func([]byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fsw == nil {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("kv: create watcher: %w", err)
		}
		// Watch the directory, not the file: atomic saves replace the
		// file by rename, which would drop a file-level watch.
		if err := fsw.Add(f.dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("kv: watch %s: %w", f.dir, err)
		}
		f.fsw = fsw
		go f.watchLoop(fsw)
	}
	if f.watchers[key] == nil {
		f.watchers[key] = map[int]func([]byte){}
	}
	id := f.nextID
	f.nextID++
	f.watchers[key][id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.watchers[key], id)
	}, nil
}

// Close stops the directory watcher, if running.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fsw == nil {
		return nil
	}
	err := f.fsw.Close()
	f.fsw = nil
	return err
}

func (f *File) watchLoop(fsw *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			f.dispatch(filepath.Clean(ev.Name))
		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// dispatch re-reads the changed key and notifies watchers unless the
// content matches this process's own last write.
func (f *File) dispatch(changed string) {
	f.mu.Lock()
	var key string
	for k := range f.watchers {
		if f.path(k) == changed {
			key = k
			break
		}
	}
	if key == "" {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	value, err := os.ReadFile(f.path(key))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return
		}
		value = nil
	}

	f.mu.Lock()
	if f.lastWritten[key] == fingerprint(value) {
		f.mu.Unlock()
		return
	}
	f.lastWritten[key] = fingerprint(value)
	fns := make([]func([]byte), 0, len(f.watchers[key]))
	for _, fn := range f.watchers[key] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
