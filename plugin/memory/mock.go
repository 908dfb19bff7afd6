package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockService is an in-memory Service implementation for tests and for
// running without an external memory backend.
type MockService struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	// FailNext makes the next call return this error, then clears. Lets
	// tests exercise degraded-memory paths.
	FailNext error
}

// NewMockService creates an empty MockService.
func NewMockService() *MockService {
	return &MockService{
		entries: make(map[string]*Entry),
	}
}

func (m *MockService) takeFailure() error {
	if err := m.FailNext; err != nil {
		m.FailNext = nil
		return err
	}
	return nil
}

// Add stores a new entry.
func (m *MockService) Add(_ context.Context, userID, text, category string, metadata map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	m.entries[id] = &Entry{
		ID:        id,
		UserID:    userID,
		Text:      text,
		Category:  category,
		Metadata:  cloneMetadata(metadata),
		UpdatedTs: time.Now().Unix(),
	}
	return id, nil
}

// Search does keyword matching over entry text and metadata values.
func (m *MockService) Search(_ context.Context, userID, query, category string, limit int) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var results []*Entry
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		if queryLower != "" && !strings.Contains(strings.ToLower(e.Text), queryLower) {
			continue
		}
		results = append(results, copyEntry(e))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].UpdatedTs > results[j].UpdatedTs
	})
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Update replaces entry text and merges metadata.
func (m *MockService) Update(_ context.Context, id, text string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	e.Text = text
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	for k, v := range metadata {
		e.Metadata[k] = v
	}
	e.UpdatedTs = time.Now().Unix()
	return nil
}

// Delete removes an entry.
func (m *MockService) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	delete(m.entries, id)
	return nil
}

// GetAll returns every entry for a user, newest first.
func (m *MockService) GetAll(_ context.Context, userID string) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var results []*Entry
	for _, e := range m.entries {
		if e.UserID == userID {
			results = append(results, copyEntry(e))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].UpdatedTs > results[j].UpdatedTs
	})
	return results, nil
}

// Len returns the number of stored entries (for tests).
func (m *MockService) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func copyEntry(e *Entry) *Entry {
	out := *e
	out.Metadata = cloneMetadata(e.Metadata)
	return &out
}

// Ensure MockService implements Service
var _ Service = (*MockService)(nil)
