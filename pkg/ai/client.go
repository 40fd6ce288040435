// Package ai writes short narrative reports over checkout journal figures using
// an Azure OpenAI deployment. Without credentials every report carries the raw
// figures only.
package ai

import (
	"context"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
)

type Reporter struct {
	client     *openai.Client
	deployment string
	logger     *zap.Logger
	now        func() time.Time
}

func NewReporter(cfg global.Config, logger *zap.Logger) *Reporter {
	r := &Reporter{deployment: cfg.AIDeployment, logger: logger, now: time.Now}
	if cfg.AIEndpoint == "" || cfg.AIKey == "" {
		logger.Info("AI reports disabled, AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_API_KEY not set")
		return r
	}
	client := openai.NewClient(
		option.WithBaseURL(cfg.AIEndpoint),
		option.WithAPIKey(cfg.AIKey),
		option.WithMaxRetries(1),
	)
	r.client = &client
	logger.Info("AI reports enabled", zap.String("deployment", r.deployment))
	return r
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.client != nil
}

func (r *Reporter) generateCompletion(ctx context.Context, systemMessage, userMessage string) (string, error) {
	if !r.Enabled() {
		return "", &AIError{Message: "AI service is not enabled"}
	}

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.deployment),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemMessage),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(userMessage),
					},
				},
			},
		},
		MaxTokens:   openai.Int(800),
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		r.logger.Warn("AI completion failed", zap.Error(err))
		return "", &AIError{Message: "Failed to generate AI response", Cause: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &AIError{Message: "AI returned empty response"}
	}
	return resp.Choices[0].Message.Content, nil
}

type AIError struct {
	Message string
	Cause   error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AIError) Unwrap() error {
	return e.Cause
}
