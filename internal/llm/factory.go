package llm

import (
	"time"

	apperrors "github.com/HexSleeves/ponder/internal/errors"
)

// ProviderConfig holds what's needed to construct an LLM client.
type ProviderConfig struct {
	APIKey  string
	BaseURL string // empty uses the OpenAI default
	Timeout time.Duration
}

// NewFromConfig creates the completion client for cfg.
func NewFromConfig(cfg ProviderConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, &apperrors.ValidationError{Msg: "no API key configured (set OPENAI_API_KEY)"}
	}
	return NewOpenAIClient(cfg), nil
}
