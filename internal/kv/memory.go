package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Medium. It backs every test and doubles as a
// stand-in for another context: SetExternal mimics a write arriving from a
// second process and fires watchers, while plain Set stays silent exactly
// like the real medium suppresses self-writes.
type Memory struct {
	mu       sync.Mutex
	data     map[string][]byte
	watchers map[string]map[int]func([]byte)
	nextID   int
	quota    int
}

// NewMemory returns an empty in-memory medium.
func NewMemory(opts ...Option) *Memory {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	return &Memory{
		data:     map[string][]byte{},
		watchers: map[string]map[int]func([]byte){},
		quota:    s.quota,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota > 0 && len(value) > m.quota {
		return ErrQuotaExceeded
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Watch registers fn for external changes to key.
func (m *Memory) Watch(key string, fn func([]byte)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchers[key] == nil {
		m.watchers[key] = map[int]func([]byte){}
	}
	id := m.nextID
	m.nextID++
	m.watchers[key][id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers[key], id)
	}, nil
}

// SetExternal stores value as if another process wrote it and notifies
// watchers. A nil value removes the key.
func (m *Memory) SetExternal(key string, value []byte) {
	m.mu.Lock()
	if value == nil {
		delete(m.data, key)
	} else {
		stored := make([]byte, len(value))
		copy(stored, value)
		m.data[key] = stored
	}
	fns := make([]func([]byte), 0, len(m.watchers[key]))
	for _, fn := range m.watchers[key] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
