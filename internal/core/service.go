package core

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
	"github.com/bencsbalazs/gemini-proxy/internal/core/ports"
	"github.com/bencsbalazs/gemini-proxy/internal/metrics"
)

// ServiceConfig is fixed at startup.
type ServiceConfig struct {
	Provider           string
	Model              string
	SystemInstructions string
	// UpstreamTimeout bounds a single provider call. Zero leaves the
	// provider's own behavior in place.
	UpstreamTimeout time.Duration
}

type GatewayService struct {
	generator ports.Generator
	cfg       ServiceConfig
	logger    slog.Logger
	metrics   *metrics.Metrics
}

var _ ports.GatewayService = (*GatewayService)(nil)

func NewGatewayService(generator ports.Generator, cfg ServiceConfig, logger slog.Logger, m *metrics.Metrics) *GatewayService {
	return &GatewayService{
		generator: generator,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
	}
}

// Generate makes exactly one provider call for prompt. Failures are logged
// here with their detail and returned classified; callers must not forward
// the error text to clients.
func (s *GatewayService) Generate(ctx context.Context, prompt string) (domain.ModelResult, error) {
	if s.cfg.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.generator.Generate(ctx, domain.GenerateRequest{
		Prompt:             prompt,
		SystemInstructions: s.cfg.SystemInstructions,
		Model:              s.cfg.Model,
	})
	took := time.Since(start)
	if err != nil {
		kind := domain.KindOf(err)
		s.metrics.ObserveCollaborator(s.cfg.Provider, string(kind), took)
		s.logger.Error(ctx, "error calling generation provider",
			slog.F("provider", s.cfg.Provider),
			slog.F("model", s.cfg.Model),
			slog.F("kind", kind),
			slog.F("took", took),
			slog.Error(err),
		)
		var cerr *domain.CollaboratorError
		if !xerrors.As(err, &cerr) {
			err = domain.NewCollaboratorError(s.cfg.Provider, kind, err)
		}
		return domain.ModelResult{}, xerrors.Errorf("generate: %w", err)
	}

	s.metrics.ObserveCollaborator(s.cfg.Provider, "ok", took)
	s.logger.Debug(ctx, "generation succeeded",
		slog.F("provider", s.cfg.Provider),
		slog.F("took", took),
		slog.F("text_len", len(result.Text)),
	)
	return result, nil
}
