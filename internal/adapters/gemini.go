package adapters

import (
	"context"

	"golang.org/x/xerrors"
	"google.golang.org/genai"

	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
)

// Gemini calls the Gemini API generateContent method.
type Gemini struct {
	client *genai.Client
}

// NewGemini returns a Gemini adapter authenticated with apiKey. baseURL
// overrides the API endpoint when set.
func NewGemini(ctx context.Context, apiKey, baseURL string) (*Gemini, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: withTrailingSlash(baseURL)}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, xerrors.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Generate(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error) {
	var config *genai.GenerateContentConfig
	if req.SystemInstructions != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: req.SystemInstructions}},
			},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		config,
	)
	if err != nil {
		var apiErr genai.APIError
		return domain.ModelResult{}, classify(ProviderGemini, err, xerrors.As(err, &apiErr))
	}

	text := resp.Text()
	if text == "" {
		reason := ""
		if resp.PromptFeedback != nil {
			reason = string(resp.PromptFeedback.BlockReason)
		}
		return domain.ModelResult{}, domain.NewCollaboratorError(ProviderGemini, domain.FailureEmpty,
			xerrors.Errorf("response has no text (block reason %q)", reason))
	}
	return domain.ModelResult{Text: text}, nil
}
