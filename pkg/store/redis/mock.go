package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nfvri/ran-scheduler/pkg/cell"
	"github.com/onosproject/onos-lib-go/pkg/errors"
)

// MockedRedisStore keeps snapshots in memory. The zero value is ready to use.
type MockedRedisStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (m *MockedRedisStore) AddCellSnapshot(ctx context.Context, snapshotID string, snap *cell.Snapshot) error {
	if snap == nil {
		return errors.NewInvalid("nil snapshot")
	}
	snapBytes, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot of cell %s: %w", snap.CellID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[SnapshotKey(snapshotID, snap.CellID, snap.Tick)] = snapBytes
	return nil
}

func (m *MockedRedisStore) GetCellSnapshot(ctx context.Context, snapshotID, cellID string, tick uint64) (*cell.Snapshot, error) {
	key := SnapshotKey(snapshotID, cellID, tick)
	m.mu.RLock()
	snapBytes, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFound("snapshot %s does not exist", key)
	}
	return decodeSnapshot(key, snapBytes)
}

func (m *MockedRedisStore) DeleteCellSnapshot(ctx context.Context, snapshotID, cellID string, tick uint64) (*cell.Snapshot, error) {
	snap, err := m.GetCellSnapshot(ctx, snapshotID, cellID, tick)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, SnapshotKey(snapshotID, cellID, tick))
	return snap, nil
}

func (m *MockedRedisStore) ListTicks(ctx context.Context, snapshotID, cellID string) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return ticksOf(cellPrefix(snapshotID, cellID), keys), nil
}
