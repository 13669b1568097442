package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"minuted/internal/capture"
)

// Outcome is one scripted result for a ScriptedSource.Listen call.
type Outcome struct {
	Text string
	Err  error
}

// ScriptedSource is a capture.Source driven by a channel of outcomes. When
// no outcome is queued, Listen blocks until the listener's context is
// canceled, which mirrors a microphone hearing nothing.
type ScriptedSource struct {
	Outcomes chan Outcome

	CalibrateErr   error
	calibrateCalls atomic.Int32
}

func NewScriptedSource() *ScriptedSource {
	return &ScriptedSource{Outcomes: make(chan Outcome, 64)}
}

// Say queues a recognized phrase.
func (s *ScriptedSource) Say(text string) {
	s.Outcomes <- Outcome{Text: text}
}

// Fail queues an error outcome.
func (s *ScriptedSource) Fail(err error) {
	s.Outcomes <- Outcome{Err: err}
}

func (s *ScriptedSource) Calibrate(_ context.Context) error {
	s.calibrateCalls.Add(1)
	return s.CalibrateErr
}

// CalibrateCalls reports how many times Calibrate ran.
func (s *ScriptedSource) CalibrateCalls() int {
	return int(s.calibrateCalls.Load())
}

func (s *ScriptedSource) Listen(ctx context.Context, _, _ time.Duration) (capture.Phrase, error) {
	select {
	case o := <-s.Outcomes:
		if o.Err != nil {
			return capture.Phrase{}, o.Err
		}
		return capture.Phrase{Text: o.Text, Heard: time.Now().UTC()}, nil
	case <-ctx.Done():
		return capture.Phrase{}, ctx.Err()
	}
}

// Factory returns a capture.SourceFactory that hands out this source for
// every session. Tests that start multiple sessions should use one source
// per session via their own factory.
func (s *ScriptedSource) Factory() capture.SourceFactory {
	return func(string) capture.Source {
		return s
	}
}
