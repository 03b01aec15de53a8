// Package speech converts voice recaps to text and answers back to audio.
// It is not part of the analysis fallback chain; errors go to the caller.
package speech

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyAudio is returned when Transcribe receives no audio.
var ErrEmptyAudio = errors.New("speech: empty audio")

// ErrEmptyText is returned when Synthesize receives no text.
var ErrEmptyText = errors.New("speech: empty text")

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// fileName picks an upload name whose extension the transcription API accepts.
func fileName(mimeType string) string {
	mt, _, _ := strings.Cut(strings.ToLower(mimeType), ";")
	switch strings.TrimSpace(mt) {
	case "audio/mpeg", "audio/mp3":
		return "recap.mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "recap.wav"
	case "audio/ogg":
		return "recap.ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "recap.m4a"
	case "audio/flac":
		return "recap.flac"
	default:
		return "recap.webm"
	}
}
