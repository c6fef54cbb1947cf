package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/bencsbalazs/gemini-proxy/internal/config"
)

func TestServerCmd_MissingAPIKey(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	inv := serverCmd().Invoke("--instructions-file", "")
	inv.Stdout = io.Discard
	inv.Stderr = &stderr

	err := inv.Run()
	require.ErrorIs(t, err, config.ErrMissingAPIKey)
	assert.Contains(t, stderr.String(), "invalid configuration")

	// Already logged at Critical, so main adds nothing.
	before := stderr.Len()
	printUnlogged(&stderr, err)
	assert.Equal(t, before, stderr.Len())
}

func TestPrintUnlogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printUnlogged(&buf, xerrors.New("unknown flag"))
	assert.Equal(t, "error: unknown flag\n", buf.String())

	buf.Reset()
	printUnlogged(&buf, xerrors.Errorf("running command: %w", loggedError{xerrors.New("bind: address in use")}))
	assert.Empty(t, buf.String())
}

func TestServerCmd_InvalidOption(t *testing.T) {
	t.Parallel()

	inv := serverCmd().Invoke("--api-key", "k", "--port", "0", "--instructions-file", "")
	inv.Stdout = io.Discard
	inv.Stderr = io.Discard

	err := inv.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, true, false).Debug(context.Background(), "hidden")
	newLogger(&buf, true, false).Info(context.Background(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	newLogger(&buf, false, true).Debug(context.Background(), "debug line")
	assert.Contains(t, buf.String(), "debug line")
}
