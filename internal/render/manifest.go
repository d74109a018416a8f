// Package render provides DeckRenderer implementations. The orchestrator
// never assumes a specific conversion mechanism; any renderer that satisfies
// the interface can sit behind the bundle store.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"lectern/internal/logger"
	"lectern/pkg/types"
)

// manifest is the on-disk description of a pre-extracted deck: the output of
// an external conversion pipeline that has already split the deck into
// per-slide text, image, and audio assets.
type manifest struct {
	Slides []manifestSlide `json:"slides"`
}

type manifestSlide struct {
	Text             string  `json:"text"`
	ImagePath        string  `json:"image_path"`
	AudioPath        string  `json:"audio_path"`
	DurationEstimate float64 `json:"duration_estimate"`
}

// ManifestRenderer builds slide bundles from a slides.json manifest next to
// the extracted assets.
type ManifestRenderer struct {
	log *logger.Logger
}

// NewManifestRenderer creates a manifest-backed renderer.
func NewManifestRenderer(log *logger.Logger) *ManifestRenderer {
	return &ManifestRenderer{log: log.With("component", "render.manifest")}
}

// Render reads the manifest at sourceRef and assembles the bundle, reporting
// progress per slide.
func (r *ManifestRenderer) Render(ctx context.Context, lessonID int64, sourceRef string, progress func(current, total int)) (*types.SlideBundle, error) {
	path := sourceRef
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, "slides.json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck manifest %s: %w", path, err)
	}

	var man manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("parse deck manifest %s: %w", path, err)
	}
	if len(man.Slides) == 0 {
		return nil, fmt.Errorf("deck manifest %s has no slides", path)
	}

	bundle := &types.SlideBundle{LessonID: lessonID}
	total := len(man.Slides)
	for i, ms := range man.Slides {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bundle.Slides = append(bundle.Slides, types.Slide{
			Index:            i,
			Text:             ms.Text,
			ImagePath:        ms.ImagePath,
			AudioPath:        ms.AudioPath,
			DurationEstimate: ms.DurationEstimate,
		})
		if progress != nil {
			progress(i+1, total)
		}
	}

	r.log.Info("deck rendered from manifest", "lesson_id", lessonID, "slides", total)
	return bundle, nil
}
