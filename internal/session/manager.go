package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"minuted/internal/capture"
	"minuted/internal/transcript"
)

// statusHistoryLen is how many trailing entries a Status snapshot carries.
const statusHistoryLen = 10

// Config tunes the Manager. Zero values fall back to sensible defaults.
type Config struct {
	Settings            capture.Settings
	DrainTimeout        time.Duration // how long Stop waits for the listener to exit
	DefaultLanguage     string
	DefaultTitle        string
	DefaultSpeakerCount int
}

// Manager owns the live-session registry and runs one listener goroutine
// per active session. All registry and session-state access is serialized
// through its lock; the listener is the only writer of a session's history.
type Manager struct {
	sources  capture.SourceFactory
	settings capture.Settings

	drainTimeout        time.Duration
	defaultLanguage     string
	defaultTitle        string
	defaultSpeakerCount int

	// Seams for tests.
	now   func() time.Time
	newID func() string

	mu   sync.Mutex
	live map[string]*liveSession
}

type liveSession struct {
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Manager that builds one capture source per session from
// the given factory.
func New(sources capture.SourceFactory, cfg Config) *Manager {
	if cfg.Settings == (capture.Settings{}) {
		cfg.Settings = capture.DefaultSettings()
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Second
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en-US"
	}
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = "Team Discussion"
	}
	if cfg.DefaultSpeakerCount <= 0 {
		cfg.DefaultSpeakerCount = 2
	}

	return &Manager{
		sources:             sources,
		settings:            cfg.Settings,
		drainTimeout:        cfg.DrainTimeout,
		defaultLanguage:     cfg.DefaultLanguage,
		defaultTitle:        cfg.DefaultTitle,
		defaultSpeakerCount: cfg.DefaultSpeakerCount,
		now:                 func() time.Time { return time.Now().UTC() },
		newID:               uuid.NewString,
		live:                make(map[string]*liveSession),
	}
}

// DefaultTitle returns the title given to sessions started without one.
func (m *Manager) DefaultTitle() string {
	return m.defaultTitle
}

// Start registers a new session and launches its listener. It returns the
// fresh session id immediately; it never blocks on the capture device.
func (m *Manager) Start(cfg StartConfig) (string, error) {
	if cfg.Language == "" {
		cfg.Language = m.defaultLanguage
	}
	if cfg.SpeakerCount <= 0 {
		cfg.SpeakerCount = m.defaultSpeakerCount
	}
	if cfg.MeetingTitle == "" {
		cfg.MeetingTitle = m.defaultTitle
	}

	id := m.newID()
	now := m.now()
	ctx, cancel := context.WithCancel(context.Background())
	ls := &liveSession{
		state: State{
			ID:             id,
			Language:       cfg.Language,
			SpeakerCount:   cfg.SpeakerCount,
			MeetingTitle:   cfg.MeetingTitle,
			Active:         true,
			StartTime:      now,
			RecentActivity: now,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.live[id] = ls
	m.mu.Unlock()

	go m.listen(ctx, ls, m.sources(cfg.Language))

	slog.Info("session started",
		"session_id", id,
		"language", cfg.Language,
		"speaker_count", cfg.SpeakerCount,
	)
	return id, nil
}

// listen is the per-session background loop. It runs until its context is
// canceled or the capture device fails for good.
func (m *Manager) listen(ctx context.Context, ls *liveSession, src capture.Source) {
	defer close(ls.done)

	id := ls.state.ID

	if err := src.Calibrate(ctx); err != nil {
		if errors.Is(err, capture.ErrDeviceFailed) {
			slog.Error("capture device failed during calibration", "session_id", id, "error", err)
			m.deactivate(id)
			return
		}
		if ctx.Err() != nil {
			return
		}
		slog.Warn("ambient noise calibration failed, continuing", "session_id", id, "error", err)
	}

	for {
		if ctx.Err() != nil {
			return
		}

		phrase, err := src.Listen(ctx, m.settings.ListenTimeout, m.settings.PhraseTimeLimit)
		switch {
		case err == nil:
			m.append(id, phrase)

		case errors.Is(err, capture.ErrWaitTimeout), errors.Is(err, capture.ErrNoSpeech):
			// Silence or unintelligible audio, try again.

		case errors.Is(err, capture.ErrDeviceFailed):
			slog.Error("capture device failed, stopping listener", "session_id", id, "error", err)
			m.deactivate(id)
			return

		case ctx.Err() != nil:
			return

		default:
			slog.Warn("recognition error", "session_id", id, "error", err)
			select {
			case <-time.After(m.settings.ErrorBackoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

// append records one recognized phrase on the owning session.
func (m *Manager) append(id string, phrase capture.Phrase) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ls, ok := m.live[id]
	if !ok {
		// Session was finalized while a capture was in flight; drop it.
		return
	}

	heard := phrase.Heard
	if heard.IsZero() {
		heard = m.now()
	}

	entry := transcript.Entry{
		ID:        m.newID(),
		Timestamp: heard,
		Text:      phrase.Text,
		Language:  ls.state.Language,
		SessionID: id,
		Speaker:   transcript.SpeakerFor(len(ls.state.History), ls.state.SpeakerCount),
	}
	ls.state.History = append(ls.state.History, entry)
	ls.state.RecentActivity = heard

	slog.Debug("phrase recorded",
		"session_id", id,
		"speaker", entry.Speaker,
		"phrase_count", len(ls.state.History),
	)
}

func (m *Manager) deactivate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ls, ok := m.live[id]; ok {
		ls.state.Active = false
	}
}

// Stop signals the session's listener to exit, waits up to the drain
// timeout for it to acknowledge, and removes the session from the live set.
// The returned State is the final snapshot for finalization. At most one
// in-flight capture may still land before the snapshot is taken.
func (m *Manager) Stop(id string) (State, error) {
	m.mu.Lock()
	ls, ok := m.live[id]
	m.mu.Unlock()
	if !ok {
		return State{}, ErrSessionNotFound
	}

	ls.cancel()
	select {
	case <-ls.done:
	case <-time.After(m.drainTimeout):
		slog.Warn("listener did not drain in time, finalizing anyway", "session_id", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ls, ok = m.live[id]
	if !ok {
		// A concurrent Stop won the race.
		return State{}, ErrSessionNotFound
	}

	ls.state.Active = false
	snapshot := ls.state
	snapshot.History = append([]transcript.Entry(nil), ls.state.History...)
	delete(m.live, id)

	slog.Info("session stopped", "session_id", id, "phrase_count", len(snapshot.History))
	return snapshot, nil
}

// Status returns a read-only snapshot with the trailing entries.
func (m *Manager) Status(id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ls, ok := m.live[id]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}

	history := ls.state.History
	if len(history) > statusHistoryLen {
		history = history[len(history)-statusHistoryLen:]
	}

	return Snapshot{
		Active:         ls.state.Active,
		PhraseCount:    len(ls.state.History),
		RecentActivity: ls.state.RecentActivity,
		History:        append([]transcript.Entry(nil), history...),
	}, nil
}

// ListActive returns the ids of all live sessions.
func (m *Manager) ListActive() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	return ids
}

// StopAll drains every live session, returning their final snapshots.
// Used on shutdown so in-progress meetings are not lost.
func (m *Manager) StopAll() []State {
	var states []State
	for _, id := range m.ListActive() {
		st, err := m.Stop(id)
		if err != nil {
			continue
		}
		states = append(states, st)
	}
	return states
}
