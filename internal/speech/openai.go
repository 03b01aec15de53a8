package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the OpenAI speech endpoints.
const (
	DefaultVoice    = openai.VoiceNova
	DefaultLanguage = "ar"
	maxSpeechInput  = 4096
)

// OpenAIConfig configures the OpenAI speech client.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string // override for tests
	Voice    openai.SpeechVoice
	Language string
}

// OpenAI implements Transcriber with Whisper and Synthesizer with TTS-1.
type OpenAI struct {
	client   *openai.Client
	voice    openai.SpeechVoice
	language string
}

// NewOpenAI creates the speech client.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(oc),
		voice:    cfg.Voice,
		language: cfg.Language,
	}, nil
}

// Transcribe sends audio to Whisper.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: fileName(mimeType),
		Reader:   bytes.NewReader(audio),
		Language: o.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Synthesize renders text as mp3 audio.
func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if r := []rune(text); len(r) > maxSpeechInput {
		text = string(r[:maxSpeechInput])
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	return audio, nil
}
