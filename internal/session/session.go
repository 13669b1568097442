package session

import (
	"errors"
	"time"

	"minuted/internal/transcript"
)

// ErrSessionNotFound is returned when an operation references a session id
// that is not in the live set.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidConfig is returned for malformed start parameters.
var ErrInvalidConfig = errors.New("invalid session config")

// State is the mutable record of one in-progress recording. It is owned by
// the Manager: only the listener goroutine appends to History, and all
// access goes through the Manager's lock.
type State struct {
	ID             string             `json:"id"`
	Language       string             `json:"language"`
	SpeakerCount   int                `json:"speaker_count"`
	MeetingTitle   string             `json:"meeting_title"`
	Active         bool               `json:"active"`
	StartTime      time.Time          `json:"start_time"`
	RecentActivity time.Time          `json:"recent_activity"`
	History        []transcript.Entry `json:"history"`
}

// Snapshot is the read-only view returned by Status.
type Snapshot struct {
	Active         bool               `json:"active"`
	PhraseCount    int                `json:"phrase_count"`
	RecentActivity time.Time          `json:"recent_activity"`
	History        []transcript.Entry `json:"history"`
}

// StartConfig carries the caller-supplied session parameters. Zero values
// fall back to the manager defaults.
type StartConfig struct {
	Language     string
	SpeakerCount int
	MeetingTitle string
}
