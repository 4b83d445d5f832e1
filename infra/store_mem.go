package infra

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store.
type MemStore struct {
	mu   sync.RWMutex
	docs map[string]memDoc
}

type memDoc struct {
	data      []byte
	updatedAt time.Time
}

func NewMemStore() *MemStore { return &MemStore{docs: make(map[string]memDoc)} }

func (m *MemStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = memDoc{data: append([]byte(nil), data...), updatedAt: time.Now().UTC()}
	return nil
}

func (m *MemStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[name]
	if !ok {
		return nil, notFound(name)
	}
	return append([]byte(nil), d.data...), nil
}

func (m *MemStore) List(ctx context.Context) ([]DocInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DocInfo, 0, len(m.docs))
	for name, d := range m.docs {
		out = append(out, DocInfo{Name: name, Size: int64(len(d.data)), UpdatedAt: d.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[name]; !ok {
		return notFound(name)
	}
	delete(m.docs, name)
	return nil
}

var _ Store = (*MemStore)(nil)
