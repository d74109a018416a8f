package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Fake is a Transcriber for tests and credential-less local runs. With no
// overrides it derives a transcript from the audio file name.
type Fake struct {
	Transcript string
	Err        error
}

func (f *Fake) Transcribe(ctx context.Context, audioRef string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.Transcript != "" {
		return f.Transcript, nil
	}
	base := strings.TrimSuffix(filepath.Base(audioRef), filepath.Ext(audioRef))
	return fmt.Sprintf("transcript of %s", base), nil
}
