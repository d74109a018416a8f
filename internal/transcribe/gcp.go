// Package transcribe provides Transcriber implementations for the question
// interrupt flow.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"lectern/internal/logger"
)

// GCP transcribes question audio with Google Cloud Speech-to-Text.
type GCP struct {
	log          *logger.Logger
	client       *speech.Client
	languageCode string
}

// NewGCP creates a GCP Speech transcriber. Credentials come from the
// ambient GOOGLE_APPLICATION_CREDENTIALS environment.
func NewGCP(ctx context.Context, log *logger.Logger, languageCode string) (*GCP, error) {
	if languageCode == "" {
		languageCode = "en-US"
	}
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &GCP{
		log:          log.With("component", "transcribe.gcp"),
		client:       client,
		languageCode: languageCode,
	}, nil
}

// Transcribe resolves audioRef (a gs:// URI or a local upload path) and
// returns the recognized text.
func (g *GCP) Transcribe(ctx context.Context, audioRef string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               g.languageCode,
		EnableAutomaticPunctuation: true,
		Encoding:                   encodingFor(audioRef),
	}

	var audio *speechpb.RecognitionAudio
	if strings.HasPrefix(audioRef, "gs://") {
		audio = &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: audioRef},
		}
	} else {
		content, err := os.ReadFile(audioRef)
		if err != nil {
			return "", fmt.Errorf("read question audio %s: %w", audioRef, err)
		}
		audio = &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		}
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{Config: cfg, Audio: audio})
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}

	var sb strings.Builder
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(strings.TrimSpace(result.Alternatives[0].Transcript))
	}

	transcript := sb.String()
	if transcript == "" {
		return "", fmt.Errorf("no speech recognized in %s", audioRef)
	}
	g.log.Debug("question transcribed", "audio_ref", audioRef, "chars", len(transcript))
	return transcript, nil
}

// Close releases the underlying client.
func (g *GCP) Close() error {
	return g.client.Close()
}

func encodingFor(audioRef string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(audioRef)) {
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		// MP3 and unknown containers: let the service sniff the header.
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
