package interfaces

import (
	"context"

	"lectern/pkg/types"
)

// Transcriber converts a spoken question into text. External collaborator;
// the orchestrator only depends on this contract.
type Transcriber interface {
	// Transcribe resolves audioRef (an upload path or storage URI) and
	// returns the transcript.
	Transcribe(ctx context.Context, audioRef string) (string, error)
}

// Answerer decides whether the lesson material contains an answer to a
// question and produces it.
type Answerer interface {
	// Answer returns the answer text, whether the material covered the
	// question, and a relevance score in [0,1].
	Answer(ctx context.Context, lessonID int64, question string) (answer string, found bool, relevance float64, err error)
}

// DeckRenderer converts a raw lesson deck into a slide bundle. Invoked exactly
// once per processing request; implementations must call progress with
// monotonically increasing (current, total) pairs.
type DeckRenderer interface {
	Render(ctx context.Context, lessonID int64, sourceRef string, progress func(current, total int)) (*types.SlideBundle, error)
}

// BundleSource is the read side of the presentation bundle store.
type BundleSource interface {
	// Bundle returns the ready bundle for a lesson, or types.ErrNotReady.
	Bundle(lessonID int64) (*types.SlideBundle, error)
}
