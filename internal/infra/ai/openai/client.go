package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
	"github.com/bryanwahyu/mediatrust/internal/infra/ai/prompt"
)

const maxTokens = 256

const defaultModel = "gpt-4o-mini"

// Detector scores metadata integrity by asking a chat model.
type Detector struct {
	*openai.Client
	Model string
}

// NewDetector builds a detector against the public OpenAI API, or against
// baseURL when set (proxies, compatible servers, tests).
func NewDetector(apiKey, model, baseURL string) *Detector {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Detector{Client: openai.NewClientWithConfig(cfg), Model: model}
}

func (d *Detector) Name() string { return "metadata-llm" }

// Score implements domain.Detector.
func (d *Detector) Score(ctx context.Context, m domain.MediaDescriptor) (int, error) {
	model := d.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(prompt.MetadataFacts{
				FileName:     m.FileName,
				DeclaredType: m.FileType,
				SniffedType:  m.SniffedType(),
				FileSize:     m.FileSize,
				Header:       m.Header,
			})},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := d.CreateChatCompletion(ctx, req)
	if err != nil {
		if isQuota(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
		}
		return 0, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, errors.New("chat completion returned no choices")
	}

	v, err := prompt.ParseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return 0, err
	}
	if v.Corrupt {
		return 0, &domain.DetectorError{
			Detector:   d.Name(),
			Err:        fmt.Errorf("corrupt container: %s", v.Reason),
			Validation: true,
		}
	}
	if *v.Score < domain.MinScore || *v.Score > domain.MaxScore {
		return 0, fmt.Errorf("model returned score %d outside [%d,%d]", *v.Score, domain.MinScore, domain.MaxScore)
	}
	return *v.Score, nil
}

func isQuota(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests
}
