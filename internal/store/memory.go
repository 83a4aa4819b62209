package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"todolists/internal/model"
)

type memEntry struct {
	raw       []byte
	updatedAt time.Time
}

// Memory keeps sessions in process memory. State is stored encoded so callers
// never share slices with the store.
type Memory struct {
	mu   sync.RWMutex
	ttl  time.Duration
	rows map[string]memEntry
	now  func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, rows: map[string]memEntry{}, now: time.Now}
}

func (m *Memory) Get(ctx context.Context, id string) (*model.Session, bool, error) {
	m.mu.RLock()
	e, ok := m.rows[id]
	m.mu.RUnlock()
	if !ok || m.now().Sub(e.updatedAt) > m.ttl {
		return nil, false, nil
	}
	var st model.Session
	if err := json.Unmarshal(e.raw, &st); err != nil {
		return nil, false, err
	}
	st.Normalize()
	return &st, true, nil
}

func (m *Memory) Set(ctx context.Context, id string, st *model.Session) error {
	if id == "" {
		return errEmptyID
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.rows[id] = memEntry{raw: b, updatedAt: m.now()}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.rows, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Prune(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.ttl)
	n := 0
	m.mu.Lock()
	for id, e := range m.rows {
		if e.updatedAt.Before(cutoff) {
			delete(m.rows, id)
			n++
		}
	}
	m.mu.Unlock()
	return n, nil
}

func (m *Memory) List(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.now().Add(-m.ttl)
	out := make([]Summary, 0, len(m.rows))
	for id, e := range m.rows {
		if e.updatedAt.Before(cutoff) {
			continue
		}
		var st model.Session
		if err := json.Unmarshal(e.raw, &st); err != nil {
			return nil, err
		}
		out = append(out, summarize(id, &st, e.updatedAt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *Memory) Close() error { return nil }
