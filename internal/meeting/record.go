package meeting

import (
	"context"
	"errors"
	"time"
)

// ErrMeetingNotFound is returned when an operation references a meeting id
// absent from the store.
var ErrMeetingNotFound = errors.New("meeting not found")

// Record is the durable artifact produced when a session ends. Summary and
// analysis are attached later, at most once flipping SummaryGenerated.
// Duration is the entry count, matching the original meeting format.
type Record struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	Duration           int        `json:"duration"`
	SpeakerCount       int        `json:"speaker_count"`
	Language           string     `json:"language"`
	Conversation       string     `json:"conversation"`
	Summary            *string    `json:"summary"`
	Analysis           *string    `json:"analysis"`
	PhraseCount        int        `json:"phrase_count"`
	LastPhrase         string     `json:"last_phrase"`
	SummaryGenerated   bool       `json:"summary_generated"`
	SummaryGeneratedAt *time.Time `json:"summary_generated_at,omitempty"`
}

// Store is the bounded meeting collection. Implementations retain at most
// the configured number of records on every persist and serialize all
// mutation internally.
type Store interface {
	// Append adds the record to the end of the collection.
	Append(ctx context.Context, rec Record) error

	// List returns records most-recently-finalized first.
	List(ctx context.Context) ([]Record, error)

	// Get returns the record with the given id or ErrMeetingNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Delete removes the record with the given id. Absent ids are a no-op.
	Delete(ctx context.Context, id string) error

	// AttachSummary sets summary and analysis on the record, marks it
	// generated, and persists. Returns the updated record or
	// ErrMeetingNotFound.
	AttachSummary(ctx context.Context, id, summary, analysis string) (Record, error)
}
