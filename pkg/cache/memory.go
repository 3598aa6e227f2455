package cache

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/btree"
)

type memoryItem struct {
	key      string
	body     []byte
	storedAt time.Time
}

func memoryItemLess(a, b memoryItem) bool { return a.key < b.key }

// Memory is an in-process Store backed by a B-Tree ordered by key.
// The tree carries its own read-write lock, so concurrent Get calls never block
// each other and a Get racing a Put sees either the old or the new body.
type Memory struct {
	tree *btree.BTreeG[memoryItem]
	// mu orders writes against expiry so a fresh Put is never evicted.
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
}

// NewMemory creates an empty memory store. A zero ttl disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		tree: btree.NewBTreeG[memoryItem](memoryItemLess),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := m.tree.Get(memoryItem{key: key})
	if !ok {
		return nil, false, nil
	}
	if expired(item.storedAt, m.ttl, m.now()) {
		m.evict(item)
		return nil, false, nil
	}
	return bytes.Clone(item.body), true, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, body []byte) error {
	item := memoryItem{key: key, body: bytes.Clone(body), storedAt: m.now()}
	m.mu.Lock()
	m.tree.Set(item)
	m.mu.Unlock()
	return nil
}

// evict deletes stale only if it is still the stored entry for its key.
func (m *Memory) evict(stale memoryItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.tree.Get(stale); ok && cur.storedAt.Equal(stale.storedAt) {
		m.tree.Delete(stale)
	}
}

// PurgePrefix removes every entry whose key starts with prefix.
func (m *Memory) PurgePrefix(_ context.Context, prefix string) (int, error) {
	var doomed []memoryItem
	m.tree.Ascend(memoryItem{key: prefix}, func(item memoryItem) bool {
		if !strings.HasPrefix(item.key, prefix) {
			return false
		}
		doomed = append(doomed, item)
		return true
	})
	for _, item := range doomed {
		m.tree.Delete(item)
	}
	return len(doomed), nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int { return m.tree.Len() }

// Close implements Store. The memory store holds no external resources.
func (m *Memory) Close() error { return nil }
