// Package openaiclient builds the process-wide OpenAI API client shared by
// the chat and speech backends.
package openaiclient

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nadzzz/voicerelay/internal/config"
)

// New creates a client from cfg. Retries are disabled: a failed upstream
// call surfaces to the relay immediately.
func New(cfg config.OpenAIConfig, extra ...option.RequestOption) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	opts = append(opts, extra...)
	return openai.NewClient(opts...)
}
