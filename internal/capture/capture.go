// Package capture defines the contract between the session listener and the
// audio capture / speech recognition collaborators. The listener only sees
// phrases and a small set of typed outcomes; where the audio actually comes
// from is an edge concern.
package capture

import (
	"context"
	"errors"
	"time"
)

// Phrase is one recognized utterance.
type Phrase struct {
	Text  string
	Heard time.Time
}

// Typed capture outcomes. The listener retries the first two silently,
// backs off on anything unrecognized, and stops only on ErrDeviceFailed.
var (
	// ErrWaitTimeout means no speech started within the listen timeout.
	ErrWaitTimeout = errors.New("capture: wait timeout")

	// ErrNoSpeech means audio was captured but could not be understood.
	ErrNoSpeech = errors.New("capture: speech not understood")

	// ErrDeviceFailed means the capture device is gone for good
	// (e.g. no microphone). The listener does not retry past it.
	ErrDeviceFailed = errors.New("capture: device failed")
)

// Source produces phrases from an audio input. One Source is bound to one
// session for its whole lifetime.
type Source interface {
	// Calibrate performs the one-time ambient noise adjustment before
	// the listen loop starts.
	Calibrate(ctx context.Context) error

	// Listen blocks for at most timeout waiting for speech to begin and
	// captures at most phraseLimit of audio, returning the recognized
	// phrase or one of the sentinel errors above.
	Listen(ctx context.Context, timeout, phraseLimit time.Duration) (Phrase, error)
}

// SourceFactory builds a Source for a new session in the given language.
type SourceFactory func(language string) Source

// Settings bounds the listen loop so stop requests are observed promptly.
type Settings struct {
	ListenTimeout   time.Duration // max wait for speech to begin, per attempt
	PhraseTimeLimit time.Duration // max length of a single captured phrase
	ErrorBackoff    time.Duration // pause after an unrecognized transient error
}

// DefaultSettings mirror the original recognizer tuning: 1s listen timeout,
// 8s phrase limit, 100ms error backoff.
func DefaultSettings() Settings {
	return Settings{
		ListenTimeout:   time.Second,
		PhraseTimeLimit: 8 * time.Second,
		ErrorBackoff:    100 * time.Millisecond,
	}
}
