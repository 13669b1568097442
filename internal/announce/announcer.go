// Package announce publishes meeting lifecycle events to NATS so other
// services can react to stored transcripts. The announcer is optional: a
// nil *Announcer drops every event, and publish failures are logged, never
// propagated.
package announce

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for lifecycle events.
const (
	SubjectSessionStarted    = "minuted.session.started"
	SubjectSessionStopped    = "minuted.session.stopped"
	SubjectMeetingStored     = "minuted.meeting.stored"
	SubjectMeetingSummarized = "minuted.meeting.summarized"
)

// Announcer publishes JSON events to a NATS connection.
type Announcer struct {
	publish func(subject string, data []byte) error
	close   func()
}

// Connect dials NATS with reconnect-forever semantics and returns an
// Announcer bound to the connection.
func Connect(natsURL string) (*Announcer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Announcer{
		publish: nc.Publish,
		close:   func() { _ = nc.Drain() },
	}, nil
}

// NewWithPublisher builds an Announcer over an arbitrary publish function.
func NewWithPublisher(publish func(subject string, data []byte) error) *Announcer {
	return &Announcer{publish: publish, close: func() {}}
}

// Close drains the underlying connection.
func (a *Announcer) Close() {
	if a == nil {
		return
	}
	a.close()
}

func (a *Announcer) emit(subject string, payload map[string]any) {
	if a == nil {
		return
	}
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal announcement", "subject", subject, "error", err)
		return
	}
	if err := a.publish(subject, data); err != nil {
		slog.Warn("failed to publish announcement", "subject", subject, "error", err)
	}
}

// SessionStarted announces a newly started recording session.
func (a *Announcer) SessionStarted(sessionID, language string, speakerCount int) {
	a.emit(SubjectSessionStarted, map[string]any{
		"session_id":    sessionID,
		"language":      language,
		"speaker_count": speakerCount,
	})
}

// SessionStopped announces that a session finished recording.
func (a *Announcer) SessionStopped(sessionID string, phraseCount int) {
	a.emit(SubjectSessionStopped, map[string]any{
		"session_id":   sessionID,
		"phrase_count": phraseCount,
	})
}

// MeetingStored announces a finalized meeting record.
func (a *Announcer) MeetingStored(meetingID, title string, phraseCount int) {
	a.emit(SubjectMeetingStored, map[string]any{
		"meeting_id":   meetingID,
		"title":        title,
		"phrase_count": phraseCount,
	})
}

// MeetingSummarized announces that summary and analysis were attached.
func (a *Announcer) MeetingSummarized(meetingID string) {
	a.emit(SubjectMeetingSummarized, map[string]any{
		"meeting_id": meetingID,
	})
}
