package ports

import (
	"context"

	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
)

//go:generate mockgen -destination=./portsmock/ports_mock.go -package=portsmock github.com/bencsbalazs/gemini-proxy/internal/core/ports Generator,GatewayService

// Generator defines the contract for external generation providers.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error)
}
