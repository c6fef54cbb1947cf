package adapters

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/xerrors"

	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
)

// OpenAI calls the Chat Completions API. The SDK's retries are disabled so
// each request makes at most one call.
type OpenAI struct {
	client openai.Client
}

func NewOpenAI(apiKey, baseURL string) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(withTrailingSlash(baseURL)))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

func (o *OpenAI) Generate(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemInstructions != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstructions))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	})
	if err != nil {
		var apiErr *openai.Error
		return domain.ModelResult{}, classify(ProviderOpenAI, err, xerrors.As(err, &apiErr))
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return domain.ModelResult{}, domain.NewCollaboratorError(ProviderOpenAI, domain.FailureEmpty,
			xerrors.New("no choices in response"))
	}
	return domain.ModelResult{Text: completion.Choices[0].Message.Content}, nil
}
