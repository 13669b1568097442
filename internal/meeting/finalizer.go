package meeting

import (
	"context"
	"log/slog"
	"time"

	"minuted/internal/session"
	"minuted/internal/transcript"
)

// titleExcerptLen bounds the conversation context sent for title derivation.
const titleExcerptLen = 500

// Titler derives a short meeting title from a conversation excerpt.
// Implementations never fail; they fall back to a fixed title instead.
type Titler interface {
	DeriveTitle(ctx context.Context, excerpt string) string
}

// Finalizer converts a stopped session into a stored meeting record.
type Finalizer struct {
	titler       Titler
	store        Store
	defaultTitle string

	now func() time.Time
}

// NewFinalizer wires a Finalizer. defaultTitle is the unmodified title that
// triggers derivation when the session recorded any phrases.
func NewFinalizer(titler Titler, store Store, defaultTitle string) *Finalizer {
	return &Finalizer{
		titler:       titler,
		store:        store,
		defaultTitle: defaultTitle,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Finalize builds the meeting record from the session's final snapshot and
// appends it to the store. A store failure is logged and degraded: the
// record is still returned so the caller can report the stop as successful.
func (f *Finalizer) Finalize(ctx context.Context, st session.State) Record {
	conversation := transcript.FormatConversation(st.History)

	title := st.MeetingTitle
	if title == f.defaultTitle && len(st.History) > 0 {
		title = f.titler.DeriveTitle(ctx, transcript.Excerpt(conversation, titleExcerptLen))
	}

	lastPhrase := ""
	if n := len(st.History); n > 0 {
		lastPhrase = st.History[n-1].Text
	}

	rec := Record{
		ID:           st.ID,
		Title:        title,
		StartTime:    st.StartTime,
		EndTime:      f.now(),
		Duration:     len(st.History),
		SpeakerCount: st.SpeakerCount,
		Language:     st.Language,
		Conversation: conversation,
		PhraseCount:  len(st.History),
		LastPhrase:   lastPhrase,
	}

	if err := f.store.Append(ctx, rec); err != nil {
		slog.Error("failed to persist meeting", "meeting_id", rec.ID, "error", err)
	} else {
		slog.Info("meeting stored",
			"meeting_id", rec.ID,
			"title", rec.Title,
			"phrase_count", rec.PhraseCount,
		)
	}

	return rec
}
