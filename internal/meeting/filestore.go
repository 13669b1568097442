package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// FileStore keeps the meeting history in memory and mirrors the newest
// records to a single JSON file on every mutation. A missing or corrupt
// file is treated as an empty history, never as a startup failure.
type FileStore struct {
	path   string
	retain int

	mu      sync.Mutex
	records []Record

	now func() time.Time
}

// NewFileStore loads the history at path, retaining at most retain records
// in the durable snapshot.
func NewFileStore(path string, retain int) *FileStore {
	if retain <= 0 {
		retain = 100
	}
	fs := &FileStore{
		path:   path,
		retain: retain,
		now:    func() time.Time { return time.Now().UTC() },
	}
	fs.records = fs.load()
	return fs
}

func (fs *FileStore) load() []Record {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("could not read meetings file, starting empty", "path", fs.path, "error", err)
		}
		return nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("meetings file is malformed, starting empty", "path", fs.path, "error", err)
		return nil
	}
	return records
}

// persist writes the newest retain records. Caller must hold fs.mu.
func (fs *FileStore) persist() error {
	records := fs.records
	if len(records) > fs.retain {
		records = records[len(records)-fs.retain:]
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meetings: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0o644); err != nil {
		return fmt.Errorf("write meetings file: %w", err)
	}
	return nil
}

func (fs *FileStore) Append(_ context.Context, rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.records = append(fs.records, rec)
	return fs.persist()
}

func (fs *FileStore) List(_ context.Context) ([]Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]Record, len(fs.records))
	for i, rec := range fs.records {
		out[len(fs.records)-1-i] = rec
	}
	return out, nil
}

func (fs *FileStore) Get(_ context.Context, id string) (Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, rec := range fs.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, ErrMeetingNotFound
}

func (fs *FileStore) Delete(_ context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	kept := fs.records[:0]
	for _, rec := range fs.records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	fs.records = kept
	return fs.persist()
}

func (fs *FileStore) AttachSummary(_ context.Context, id, summary, analysis string) (Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i := range fs.records {
		if fs.records[i].ID != id {
			continue
		}
		now := fs.now()
		fs.records[i].Summary = &summary
		fs.records[i].Analysis = &analysis
		fs.records[i].SummaryGenerated = true
		fs.records[i].SummaryGeneratedAt = &now
		if err := fs.persist(); err != nil {
			return Record{}, err
		}
		return fs.records[i], nil
	}
	return Record{}, ErrMeetingNotFound
}
