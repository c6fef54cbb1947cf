// Package config binds the gateway's flags and environment variables and
// turns them into the immutable startup configuration.
package config

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/coder/serpent"
	"github.com/go-playground/validator/v10"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/bencsbalazs/gemini-proxy/internal/adapters"
	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
	"github.com/bencsbalazs/gemini-proxy/internal/handlers"
)

const (
	DefaultAllowedOrigins   = "https://bencsbalazs.github.io"
	DefaultModel            = "gemini-1.5-flash"
	DefaultInstructionsFile = "instructions.md"
)

// ErrMissingAPIKey is returned by Build when no provider credential is set.
var ErrMissingAPIKey = xerrors.New("GEMINI_API_KEY is not set")

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report flag names rather than Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("flag")
	})
}

// Options holds the raw option values. Bind them with OptionSet, then call
// Build.
type Options struct {
	APIKey            string        `flag:"api-key"`
	Provider          string        `flag:"provider" validate:"oneof=gemini openai anthropic"`
	Model             string        `flag:"model" validate:"required"`
	AllowedOrigins    string        `flag:"allowed-origins"`
	Port              int64         `flag:"port" validate:"min=1,max=65535"`
	Path              string        `flag:"path" validate:"startswith=/"`
	InstructionsFile  string        `flag:"instructions-file"`
	RequireOrigin     bool          `flag:"require-origin"`
	ProviderBaseURL   string        `flag:"provider-base-url" validate:"omitempty,url"`
	UpstreamTimeout   time.Duration `flag:"upstream-timeout" validate:"min=0"`
	MaxBodyBytes      int64         `flag:"max-body-bytes" validate:"min=1"`
	RateLimit         int64         `flag:"rate-limit" validate:"min=0"`
	RateWindow        time.Duration `flag:"rate-window" validate:"required_with=RateLimit"`
	MaxConcurrency    int64         `flag:"max-concurrency" validate:"min=0"`
	TrustProxyHeaders bool          `flag:"trust-proxy-headers"`
	PrometheusAddress string        `flag:"prometheus-address" validate:"omitempty,hostname_port"`
	LogJSON           bool          `flag:"log-json"`
	Verbose           bool          `flag:"verbose"`
}

func (o *Options) OptionSet() serpent.OptionSet {
	return serpent.OptionSet{
		{
			Name:        "API Key",
			Description: "Credential for the generation provider.",
			Flag:        "api-key",
			Env:         "GEMINI_API_KEY",
			Value:       serpent.StringOf(&o.APIKey),
		},
		{
			Name:        "Provider",
			Description: "Generation provider to forward prompts to.",
			Flag:        "provider",
			Env:         "GATEWAY_PROVIDER",
			Default:     adapters.ProviderGemini,
			Value:       serpent.EnumOf(&o.Provider, adapters.Providers...),
		},
		{
			Name:        "Model",
			Description: "Model identifier passed to the provider.",
			Flag:        "model",
			Env:         "GEMINI_MODEL",
			Default:     DefaultModel,
			Value:       serpent.StringOf(&o.Model),
		},
		{
			Name:        "Allowed Origins",
			Description: "Comma-separated list of browser origins allowed to call the gateway.",
			Flag:        "allowed-origins",
			Env:         "ALLOWED_ORIGINS",
			Default:     DefaultAllowedOrigins,
			Value:       serpent.StringOf(&o.AllowedOrigins),
		},
		{
			Name:        "Port",
			Description: "TCP port to listen on.",
			Flag:        "port",
			Env:         "PORT",
			Default:     "8080",
			Value:       serpent.Int64Of(&o.Port),
		},
		{
			Name:        "Path",
			Description: "Path the gateway endpoint is served on.",
			Flag:        "path",
			Env:         "GATEWAY_PATH",
			Default:     "/",
			Value:       serpent.StringOf(&o.Path),
		},
		{
			Name:        "Instructions File",
			Description: "File holding the system instructions sent with every prompt. A missing file means no instructions.",
			Flag:        "instructions-file",
			Env:         "INSTRUCTIONS_FILE",
			Default:     DefaultInstructionsFile,
			Value:       serpent.StringOf(&o.InstructionsFile),
		},
		{
			Name:        "Require Origin",
			Description: "Reject requests that carry no Origin header.",
			Flag:        "require-origin",
			Env:         "GATEWAY_REQUIRE_ORIGIN",
			Default:     "false",
			Value:       serpent.BoolOf(&o.RequireOrigin),
		},
		{
			Name:        "Provider Base URL",
			Description: "Overrides the provider API endpoint.",
			Flag:        "provider-base-url",
			Env:         "GATEWAY_PROVIDER_BASE_URL",
			Value:       serpent.StringOf(&o.ProviderBaseURL),
		},
		{
			Name:        "Upstream Timeout",
			Description: "Deadline for a single provider call. 0 disables it.",
			Flag:        "upstream-timeout",
			Env:         "GATEWAY_UPSTREAM_TIMEOUT",
			Default:     "0",
			Value:       serpent.DurationOf(&o.UpstreamTimeout),
		},
		{
			Name:        "Max Body Bytes",
			Description: "Largest request body accepted.",
			Flag:        "max-body-bytes",
			Env:         "GATEWAY_MAX_BODY_BYTES",
			Default:     strconv.Itoa(handlers.DefaultMaxBodyBytes),
			Value:       serpent.Int64Of(&o.MaxBodyBytes),
		},
		{
			Name:        "Rate Limit",
			Description: "Requests allowed per rate window per client IP. 0 disables rate limiting.",
			Flag:        "rate-limit",
			Env:         "GATEWAY_RATE_LIMIT",
			Default:     "0",
			Value:       serpent.Int64Of(&o.RateLimit),
		},
		{
			Name:        "Rate Window",
			Description: "Length of the rate limiting window.",
			Flag:        "rate-window",
			Env:         "GATEWAY_RATE_WINDOW",
			Default:     "1m",
			Value:       serpent.DurationOf(&o.RateWindow),
		},
		{
			Name:        "Max Concurrency",
			Description: "Requests served at once before answering 503. 0 disables the cap.",
			Flag:        "max-concurrency",
			Env:         "GATEWAY_MAX_CONCURRENCY",
			Default:     "0",
			Value:       serpent.Int64Of(&o.MaxConcurrency),
		},
		{
			Name:        "Trust Proxy Headers",
			Description: "Take the client IP from X-Forwarded-For and X-Real-IP.",
			Flag:        "trust-proxy-headers",
			Env:         "GATEWAY_TRUST_PROXY_HEADERS",
			Default:     "false",
			Value:       serpent.BoolOf(&o.TrustProxyHeaders),
		},
		{
			Name:        "Prometheus Address",
			Description: "Address to serve Prometheus metrics on. Empty disables the listener.",
			Flag:        "prometheus-address",
			Env:         "GATEWAY_PROMETHEUS_ADDRESS",
			Value:       serpent.StringOf(&o.PrometheusAddress),
		},
		{
			Name:        "Log JSON",
			Description: "Write logs as JSON.",
			Flag:        "log-json",
			Env:         "GATEWAY_LOG_JSON",
			Default:     "false",
			Value:       serpent.BoolOf(&o.LogJSON),
		},
		{
			Name:          "Verbose",
			Description:   "Log at debug level.",
			Flag:          "verbose",
			FlagShorthand: "v",
			Env:           "GATEWAY_VERBOSE",
			Default:       "false",
			Value:         serpent.BoolOf(&o.Verbose),
		},
	}
}

// Config is the validated startup configuration. It is passed by value and
// never changes after Build returns.
type Config struct {
	APIKey             string
	Provider           string
	Model              string
	Origins            domain.OriginSet
	Addr               string
	Path               string
	SystemInstructions string
	RequireOrigin      bool
	ProviderBaseURL    string
	UpstreamTimeout    time.Duration
	MaxBodyBytes       int64
	RateLimit          int
	RateWindow         time.Duration
	MaxConcurrency     int64
	TrustProxyHeaders  bool
	PrometheusAddress  string
}

// Build validates o and loads the system instructions.
func (o Options) Build(ctx context.Context, logger slog.Logger) (Config, error) {
	if strings.TrimSpace(o.APIKey) == "" {
		return Config{}, ErrMissingAPIKey
	}
	if err := validateOptions(o); err != nil {
		return Config{}, err
	}

	origins := domain.ParseOriginSet(o.AllowedOrigins)
	if origins.Len() == 0 {
		return Config{}, xerrors.New("allowed-origins: at least one origin is required")
	}

	instructions, err := LoadInstructions(ctx, logger, o.InstructionsFile)
	if err != nil {
		return Config{}, err
	}

	return Config{
		APIKey:             o.APIKey,
		Provider:           o.Provider,
		Model:              o.Model,
		Origins:            origins,
		Addr:               net.JoinHostPort("", strconv.FormatInt(o.Port, 10)),
		Path:               o.Path,
		SystemInstructions: instructions,
		RequireOrigin:      o.RequireOrigin,
		ProviderBaseURL:    o.ProviderBaseURL,
		UpstreamTimeout:    o.UpstreamTimeout,
		MaxBodyBytes:       o.MaxBodyBytes,
		RateLimit:          int(o.RateLimit),
		RateWindow:         o.RateWindow,
		MaxConcurrency:     o.MaxConcurrency,
		TrustProxyHeaders:  o.TrustProxyHeaders,
		PrometheusAddress:  o.PrometheusAddress,
	}, nil
}

func validateOptions(o Options) error {
	err := validate.Struct(o)
	var validationErrors validator.ValidationErrors
	if xerrors.As(err, &validationErrors) {
		msgs := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q check with value %v", fe.Field(), fe.Tag(), fe.Value()))
		}
		return xerrors.Errorf("invalid options: %s", strings.Join(msgs, "; "))
	}
	if err != nil {
		return xerrors.Errorf("validate options: %w", err)
	}
	return nil
}

// LoadInstructions reads the system instructions from path. A missing file is
// not an error: it is logged and yields empty instructions.
func LoadInstructions(ctx context.Context, logger slog.Logger, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if xerrors.Is(err, fs.ErrNotExist) {
		logger.Warn(ctx, "instructions file not found, continuing without system instructions",
			slog.F("path", path),
		)
		return "", nil
	}
	if err != nil {
		return "", xerrors.Errorf("read instructions file %q: %w", path, err)
	}
	return string(raw), nil
}
