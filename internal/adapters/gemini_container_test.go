package adapters_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bencsbalazs/gemini-proxy/internal/adapters"
)

// startMockServer runs a MockServer container and returns its base URL.
func startMockServer(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "mockserver/mockserver:5.15.0",
		ExposedPorts: []string{"1080/tcp"},
		// The status endpoint only answers once the port is reachable.
		WaitingFor: wait.ForHTTP("/mockserver/status").
			WithPort("1080/tcp").
			WithMethod(http.MethodPut).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return "http://" + endpoint
}

// expect registers a MockServer expectation that only matches requests whose
// JSON body contains bodyMatch.
func expect(t *testing.T, host, method, path, bodyMatch string, status int, respBody string) {
	t.Helper()
	payload := fmt.Sprintf(`{
		"httpRequest": {
			"method": %q,
			"path": %q,
			"body": {"type": "JSON", "json": %s}
		},
		"httpResponse": {
			"statusCode": %d,
			"headers": {"Content-Type": ["application/json"]},
			"body": %s
		}
	}`, method, path, bodyMatch, status, respBody)

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodPut, host+"/mockserver/expectation", strings.NewReader(payload))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err, "connect to MockServer")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "MockServer rejected the expectation")
}

func TestGemini_MockServer(t *testing.T) {
	host := startMockServer(t)

	// Only matches when the system instructions travel with the prompt; a
	// mismatch answers 404 and fails the call.
	expect(t, host, http.MethodPost, "/v1beta/models/test-model:generateContent",
		`{
			"contents": [{"role": "user", "parts": [{"text": "hello"}]}],
			"systemInstruction": {"parts": [{"text": "You are a helpful agent."}]}
		}`,
		http.StatusOK,
		`{"candidates": [{"content": {"role": "model", "parts": [{"text": "Hello from the container"}]}}]}`,
	)

	g, err := adapters.NewGemini(context.Background(), "key", host)
	require.NoError(t, err)

	result, err := g.Generate(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "Hello from the container", result.Text)
}
