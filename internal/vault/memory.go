package vault

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryVault keeps snapshots in memory. It is safe for concurrent use.
type MemoryVault struct {
	mu    sync.RWMutex
	snaps map[string]memSnapshot
	now   func() time.Time
}

type memSnapshot struct {
	data []byte
	at   time.Time
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		snaps: make(map[string]memSnapshot),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryVault) Put(name string, r io.Reader) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snaps[name]; ok {
		return 0, fmt.Errorf("snapshot %s already exists", name)
	}
	m.snaps[name] = memSnapshot{data: data, at: m.now()}
	return int64(len(data)), nil
}

func (m *MemoryVault) Get(name string, w io.Writer) error {
	m.mu.RLock()
	s, ok := m.snaps[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(s.data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (m *MemoryVault) List(prefix string) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var snaps []Snapshot
	for name, s := range m.snaps {
		if strings.HasPrefix(name, prefix) {
			snaps = append(snaps, Snapshot{Name: name, Size: int64(len(s.data)), CreatedAt: s.at})
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps, nil
}

func (m *MemoryVault) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snaps[name]; !ok {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	delete(m.snaps, name)
	return nil
}

func (m *MemoryVault) Location(name string) string {
	return "memory:" + name
}

var _ Vault = (*MemoryVault)(nil)
