package storetest

import (
	"context"
	"sync"
	"time"

	"minuted/internal/meeting"
)

// MockStore is a thread-safe in-memory meeting.Store for testing.
type MockStore struct {
	mu sync.Mutex

	Records []meeting.Record

	AppendErr error
	ListErr   error

	AppendCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Append(_ context.Context, rec meeting.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Records = append(m.Records, rec)
	return nil
}

func (m *MockStore) List(_ context.Context) ([]meeting.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]meeting.Record, len(m.Records))
	for i, rec := range m.Records {
		out[len(m.Records)-1-i] = rec
	}
	return out, nil
}

func (m *MockStore) Get(_ context.Context, id string) (meeting.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.Records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return meeting.Record{}, meeting.ErrMeetingNotFound
}

func (m *MockStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Records[:0]
	for _, rec := range m.Records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	m.Records = kept
	return nil
}

func (m *MockStore) AttachSummary(_ context.Context, id, summary, analysis string) (meeting.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Records {
		if m.Records[i].ID != id {
			continue
		}
		now := time.Now().UTC()
		m.Records[i].Summary = &summary
		m.Records[i].Analysis = &analysis
		m.Records[i].SummaryGenerated = true
		m.Records[i].SummaryGeneratedAt = &now
		return m.Records[i], nil
	}
	return meeting.Record{}, meeting.ErrMeetingNotFound
}

// Count returns how many records the store holds.
func (m *MockStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}
