package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3/sloggers/slogtest"

	"github.com/bencsbalazs/gemini-proxy/internal/core"
	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
	"github.com/bencsbalazs/gemini-proxy/internal/core/ports/portsmock"
	"github.com/bencsbalazs/gemini-proxy/internal/metrics"
)

// Test mock defined locally to control behavior per test
type TestMockGenerator struct {
	mockGenerate func(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error)
}

func (m *TestMockGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error) {
	return m.mockGenerate(ctx, req)
}

var testServiceConfig = core.ServiceConfig{
	Provider:           "gemini",
	Model:              "gemini-1.5-flash",
	SystemInstructions: "You are a helpful agent.",
}

func TestGatewayService_ForwardsPromptAndInstructions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	gen := portsmock.NewMockGenerator(ctrl)
	gen.EXPECT().
		Generate(gomock.Any(), domain.GenerateRequest{
			Prompt:             "hello",
			SystemInstructions: "You are a helpful agent.",
			Model:              "gemini-1.5-flash",
		}).
		Return(domain.ModelResult{Text: "hi there"}, nil).
		Times(1)

	logger := slogtest.Make(t, nil)
	svc := core.NewGatewayService(gen, testServiceConfig, logger, nil)

	result, err := svc.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Text)
}

func TestGatewayService_ClassifiesFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected domain.FailureKind
	}{
		{
			name:     "Provider",
			err:      domain.NewCollaboratorError("gemini", domain.FailureProvider, errors.New("quota exceeded")),
			expected: domain.FailureProvider,
		},
		{
			name:     "Unclassified",
			err:      errors.New("connection reset by peer"),
			expected: domain.FailureTransport,
		},
		{
			name:     "Canceled",
			err:      xerrors.Errorf("do: %w", context.Canceled),
			expected: domain.FailureCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := &TestMockGenerator{
				mockGenerate: func(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error) {
					return domain.ModelResult{}, tt.err
				},
			}
			reg := prometheus.NewRegistry()
			logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
			svc := core.NewGatewayService(gen, testServiceConfig, logger, metrics.New(reg))

			_, err := svc.Generate(context.Background(), "hello")
			require.Error(t, err)

			var cerr *domain.CollaboratorError
			require.True(t, xerrors.As(err, &cerr), "failures are always classified")
			assert.Equal(t, tt.expected, cerr.Kind)
			assert.Equal(t, "gemini", cerr.Provider)

			count, err := testutil.GatherAndCount(reg, "gateway_collaborator_duration_seconds")
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestGatewayService_UpstreamTimeout(t *testing.T) {
	t.Parallel()

	gen := &TestMockGenerator{
		mockGenerate: func(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error) {
			deadline, ok := ctx.Deadline()
			if !ok {
				t.Error("Expected a deadline on the provider context")
			}
			if time.Until(deadline) > time.Minute {
				t.Errorf("Deadline too far away: %s", time.Until(deadline))
			}
			<-ctx.Done()
			return domain.ModelResult{}, ctx.Err()
		},
	}

	cfg := testServiceConfig
	cfg.UpstreamTimeout = 10 * time.Millisecond
	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	svc := core.NewGatewayService(gen, cfg, logger, nil)

	_, err := svc.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, domain.FailureCanceled, domain.KindOf(err))
}

func TestGatewayService_NoDeadlineByDefault(t *testing.T) {
	t.Parallel()

	gen := &TestMockGenerator{
		mockGenerate: func(ctx context.Context, req domain.GenerateRequest) (domain.ModelResult, error) {
			if _, ok := ctx.Deadline(); ok {
				t.Error("Expected no deadline without an upstream timeout")
			}
			return domain.ModelResult{Text: "ok"}, nil
		},
	}

	svc := core.NewGatewayService(gen, testServiceConfig, slogtest.Make(t, nil), nil)
	_, err := svc.Generate(context.Background(), "hello")
	require.NoError(t, err)
}
