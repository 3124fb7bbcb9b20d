// Package openaiasr transcribes clips through an OpenAI-compatible
// /audio/transcriptions endpoint.
package openaiasr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/rbright/cyberscribe/internal/engine"
)

// Config selects the remote model and credentials.
type Config struct {
	Model     string
	BaseURL   string
	APIKeyEnv string
}

// Model is a remote transcription model. It holds no local resources.
type Model struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// Loader returns an engine.Loader that builds a client from cfg.
func Loader(cfg Config, logger *slog.Logger) engine.Loader {
	return func(_ context.Context, _ engine.Spec) (engine.Model, error) {
		return New(cfg, logger)
	}
}

// New validates credentials and constructs the client. No request is made.
func New(cfg Config, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	envName := strings.TrimSpace(cfg.APIKeyEnv)
	if envName == "" {
		envName = "OPENAI_API_KEY"
	}
	apiKey := strings.TrimSpace(os.Getenv(envName))
	if apiKey == "" {
		return nil, fmt.Errorf("%s is not set", envName)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "whisper-1"
	}
	return &Model{client: openai.NewClient(opts...), model: model, logger: logger}, nil
}

// Transcribe uploads the clip and returns the response text as one segment.
func (m *Model) Transcribe(ctx context.Context, audioPath string, opts engine.Options) ([]engine.Segment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(m.model),
	}
	if opts.Language != "" {
		params.Language = openai.String(opts.Language)
	}

	resp, err := m.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}
	m.logger.Debug("openai transcription finished", "model", m.model, "chars", len(resp.Text))

	if strings.TrimSpace(resp.Text) == "" {
		return nil, nil
	}
	return []engine.Segment{{Text: resp.Text}}, nil
}

// Close is a no-op.
func (m *Model) Close() error {
	return nil
}
