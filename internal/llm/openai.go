package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	apperrors "github.com/HexSleeves/ponder/internal/errors"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
// Requests are never retried.
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(cfg ProviderConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(normalizeBaseURL(cfg.BaseURL)))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	c := openai.NewClient(opts...)
	return &OpenAIClient{client: &c}
}

// ListModels returns the ids of the models the endpoint serves, sorted.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		status, reason, _ := describeAPIError(err)
		return nil, &apperrors.RemoteError{Op: "list models", Status: status, Reason: reason}
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Complete sends messages and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, messages Transcript, opts Options) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: toOpenAIMessages(messages),
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		status, reason, body := describeAPIError(err)
		return "", &apperrors.CompletionError{Status: status, Reason: reason, Body: body}
	}
	if len(resp.Choices) == 0 {
		return "", &apperrors.CompletionError{
			Status: http.StatusOK,
			Reason: "response contained no choices",
			Body:   resp.RawJSON(),
		}
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(msgs Transcript) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// describeAPIError extracts status, a human readable reason and the raw body
// from an SDK error. Transport failures carry status 0.
func describeAPIError(err error) (int, string, string) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.RawJSON()
		reason := gjson.Get(body, "error.message").String()
		if reason == "" {
			reason = gjson.Get(body, "message").String()
		}
		return apiErr.StatusCode, apperrors.StatusReason(apiErr.StatusCode, reason), body
	}
	return 0, fmt.Sprintf("request failed: %v", err), ""
}

// The SDK joins paths onto the base URL, which must end in a slash.
func normalizeBaseURL(u string) string {
	if !strings.HasSuffix(u, "/") {
		return u + "/"
	}
	return u
}
