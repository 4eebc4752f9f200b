package flight

import (
	"context"
	"fmt"
	"sync"

	"github.com/23skdu/longbow-corpus/internal/dataset"
)

// MockPublisher keeps published records in memory.
type MockPublisher struct {
	mu        sync.RWMutex
	connected bool
	data      map[string][]dataset.FormattedRecord
	// Err, when set, is returned by Publish.
	Err error
	// CloseErr, when set, is returned by Close.
	CloseErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{data: make(map[string][]dataset.FormattedRecord)}
}

func (m *MockPublisher) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return m.CloseErr
}

func (m *MockPublisher) Publish(ctx context.Context, path, outField string, records []dataset.FormattedRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, fmt.Errorf("client not connected")
	}
	if m.Err != nil {
		return 0, m.Err
	}
	m.data[path] = append(m.data[path], records...)
	return int64(len(records)), nil
}

// Published returns the records stored under path.
func (m *MockPublisher) Published(path string) []dataset.FormattedRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]dataset.FormattedRecord(nil), m.data[path]...)
}
