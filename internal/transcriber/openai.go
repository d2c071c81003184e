package transcriber

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultModels maps quality tiers onto hosted speech-to-text models.
var DefaultModels = map[entity.Model]string{
	entity.ModelSmall:  "gpt-4o-mini-transcribe",
	entity.ModelMedium: "whisper-1",
	entity.ModelLarge:  "gpt-4o-transcribe",
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Models  map[entity.Model]string
}

// OpenAI sends the whole artifact to the audio transcription endpoint.
// The endpoint returns plain text, so the result is a single segment.
type OpenAI struct {
	client openai.Client
	models map[entity.Model]string
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	models := cfg.Models
	if models == nil {
		models = DefaultModels
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		models: models,
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, audio io.Reader, entry entity.QueueEntry) (*entity.TranscriptResult, error) {
	model, ok := o.models[entry.Model]
	if !ok {
		return nil, fmt.Errorf("no speech model configured for tier %q", entry.Model)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filepath.Base(entry.Filename), ""),
		Model: openai.AudioModel(model),
	}
	lang := strings.TrimSpace(entry.Language)
	if lang == "auto" {
		lang = ""
	}
	if lang != "" {
		params.Language = openai.String(lang)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	result := &entity.TranscriptResult{Language: lang}
	if text != "" {
		seg := entity.TranscriptSegment{Text: text}
		if entry.IsSpeakerDiarized {
			seg.Speaker = "SPEAKER_00"
		}
		result.Segments = []entity.TranscriptSegment{seg}
	}
	return result, nil
}
