package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/okian/readiness/pkg/metrics"
)

type memEntry struct {
	player string
	key    string
	value  []byte
}

// Memory is a bounded FIFO cache. Oldest entries are evicted first.
type Memory struct {
	mu       sync.Mutex
	max      int
	order    *list.List
	byPlayer map[string]map[string]*list.Element
}

// NewMemory creates an in-process cache.
func NewMemory(opts ...Option) *Memory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory{
		max:      o.maxEntries,
		order:    list.New(),
		byPlayer: make(map[string]map[string]*list.Element),
	}
}

func (m *Memory) Get(_ context.Context, k Key) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.byPlayer[k.PlayerID][k.String()]
	if !ok {
		return nil, false
	}
	return el.Value.(*memEntry).value, true
}

func (m *Memory) Set(_ context.Context, k Key, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := k.String()
	entries := m.byPlayer[k.PlayerID]
	if entries == nil {
		entries = make(map[string]*list.Element)
		m.byPlayer[k.PlayerID] = entries
	}
	if el, ok := entries[key]; ok {
		el.Value.(*memEntry).value = value
		return
	}

	entries[key] = m.order.PushBack(&memEntry{player: k.PlayerID, key: key, value: value})
	for m.order.Len() > m.max {
		m.remove(m.order.Front())
	}
	metrics.UpdateCacheEntries(m.order.Len())
}

func (m *Memory) remove(el *list.Element) {
	e := el.Value.(*memEntry)
	m.order.Remove(el)
	entries := m.byPlayer[e.player]
	delete(entries, e.key)
	if len(entries) == 0 {
		delete(m.byPlayer, e.player)
	}
}

func (m *Memory) InvalidatePlayer(_ context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, el := range m.byPlayer[playerID] {
		m.order.Remove(el)
	}
	delete(m.byPlayer, playerID)
	metrics.RecordCacheInvalidation()
	metrics.UpdateCacheEntries(m.order.Len())
	return nil
}

func (m *Memory) Len(context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory) Close() error { return nil }
