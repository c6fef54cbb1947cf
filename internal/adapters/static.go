package adapters

import (
	"context"
	"sync/atomic"

	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
)

// Static is a deterministic generator. It returns Text, or Err when set,
// and counts its calls.
type Static struct {
	Text string
	Err  error

	calls atomic.Int64
}

func (s *Static) Generate(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return domain.ModelResult{}, domain.NewCollaboratorError(ProviderStatic, domain.FailureCanceled, err)
	}
	if s.Err != nil {
		return domain.ModelResult{}, s.Err
	}
	return domain.ModelResult{Text: s.Text}, nil
}

// Calls returns how many times Generate ran.
func (s *Static) Calls() int64 {
	return s.calls.Load()
}
