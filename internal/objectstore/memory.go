package objectstore

import (
	"context"
	"sync"
)

// Memory is a process-local Storage used in development and tests.
type Memory struct {
	mu      sync.RWMutex
	prefix  string
	objects map[string][]byte
}

func NewMemory(prefix string) *Memory {
	return &Memory{prefix: prefix, objects: make(map[string][]byte)}
}

func (m *Memory) PutObject(ctx context.Context, data []byte, meta Metadata) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if len(data) == 0 {
		return Object{}, ErrEmptyObject
	}
	key := objectKey(m.prefix, meta)
	buf := append([]byte(nil), data...)

	m.mu.Lock()
	m.objects[key] = buf
	m.mu.Unlock()
	return Object{Path: key, Size: int64(len(buf))}, nil
}

func (m *Memory) GetObject(ctx context.Context, storagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.objects[storagePath]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
