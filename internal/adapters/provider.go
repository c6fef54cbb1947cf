package adapters

import (
	"context"
	"strings"

	"golang.org/x/xerrors"

	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
	"github.com/bencsbalazs/gemini-proxy/internal/core/ports"
)

// Provider names accepted by New.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderStatic labels the Static generator in logs and metrics. New does
// not build it.
const ProviderStatic = "static"

// Providers lists the names New accepts.
var Providers = []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic}

// ProviderConfig selects and authenticates a generation provider.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
}

// New returns the generator for cfg.Name.
func New(ctx context.Context, cfg ProviderConfig) (ports.Generator, error) {
	switch cfg.Name {
	case ProviderGemini, "":
		return NewGemini(ctx, cfg.APIKey, cfg.BaseURL)
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.BaseURL), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, xerrors.Errorf("unknown provider %q (want one of %s)", cfg.Name, strings.Join(Providers, ", "))
	}
}

// classify wraps err as a collaborator failure. providerErr reports whether
// the provider itself answered with an error.
func classify(provider string, err error, providerErr bool) error {
	switch {
	case xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded):
		return domain.NewCollaboratorError(provider, domain.FailureCanceled, err)
	case providerErr:
		return domain.NewCollaboratorError(provider, domain.FailureProvider, err)
	default:
		return domain.NewCollaboratorError(provider, domain.FailureTransport, err)
	}
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
