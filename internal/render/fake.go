package render

import (
	"context"
	"fmt"
	"sync/atomic"

	"lectern/pkg/types"
)

// Fake is a DeckRenderer for tests: it produces a synthetic bundle of
// SlideCount slides, or fails when Err is set. Calls counts invocations so
// tests can assert single-flight behavior.
type Fake struct {
	SlideCount int
	Err        error
	Delay      chan struct{} // when non-nil, Render blocks until closed
	Calls      atomic.Int32
}

func (f *Fake) Render(ctx context.Context, lessonID int64, sourceRef string, progress func(current, total int)) (*types.SlideBundle, error) {
	f.Calls.Add(1)
	if f.Delay != nil {
		select {
		case <-f.Delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}

	n := f.SlideCount
	if n <= 0 {
		n = 3
	}
	bundle := &types.SlideBundle{LessonID: lessonID}
	for i := 0; i < n; i++ {
		bundle.Slides = append(bundle.Slides, types.Slide{
			Index:            i,
			Text:             fmt.Sprintf("slide %d", i+1),
			ImagePath:        fmt.Sprintf("uploads/slides/lesson_%d/slide_%d.png", lessonID, i+1),
			AudioPath:        fmt.Sprintf("uploads/audio/presentations/lesson_%d_slide_%d.mp3", lessonID, i+1),
			DurationEstimate: 3.5,
		})
		if progress != nil {
			progress(i+1, n)
		}
	}
	return bundle, nil
}
