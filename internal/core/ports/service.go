package ports

import (
	"context"

	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
)

// GatewayService defines the main entry point for the business logic.
type GatewayService interface {
	Generate(ctx context.Context, prompt string) (domain.ModelResult, error)
}
