package adapters

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/xerrors"

	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
)

// anthropicMaxTokens bounds the reply length; the Messages API requires it.
const anthropicMaxTokens = 1024

// Anthropic calls the Messages API with retries disabled.
type Anthropic struct {
	client anthropic.Client
}

func NewAnthropic(apiKey, baseURL string) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(withTrailingSlash(baseURL)))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

func (a *Anthropic) Generate(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemInstructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemInstructions}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		return domain.ModelResult{}, classify(ProviderAnthropic, err, xerrors.As(err, &apiErr))
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return domain.ModelResult{}, domain.NewCollaboratorError(ProviderAnthropic, domain.FailureEmpty,
			xerrors.Errorf("no text blocks in response (stop reason %q)", msg.StopReason))
	}
	return domain.ModelResult{Text: b.String()}, nil
}
