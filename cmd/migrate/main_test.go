package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"-direction", " DOWN ", "-steps", "2", "-dsn", " postgres://a@b/c "}, lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, options{direction: "down", steps: 2, dsn: "postgres://a@b/c"}, opts)

	opts, err = parseOptions(nil, lookupFrom(map[string]string{envPostgresDSN: "postgres://env@db/shop"}))
	require.NoError(t, err)
	assert.Equal(t, "up", opts.direction)
	assert.Zero(t, opts.steps)
	assert.Equal(t, "postgres://env@db/shop", opts.dsn)
}

func TestParseOptions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr string
	}{
		{name: "missing dsn", args: []string{"-direction=status"}, wantErr: envPostgresDSN},
		{name: "bad direction", args: []string{"-direction=sideways", "-dsn=x"}, wantErr: "unsupported direction"},
		{name: "negative steps", args: []string{"-steps=-1", "-dsn=x"}, wantErr: "steps must be >= 0"},
		{name: "unknown flag", args: []string{"-force"}, wantErr: "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOptions(tt.args, lookupFrom(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_StatusUpDown(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	if err := run(ctx, options{direction: "status", dsn: dsn}, &out); err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	assert.Contains(t, out.String(), "migrate status ok")

	out.Reset()
	require.NoError(t, run(ctx, options{direction: "up", dsn: dsn}, &out))
	assert.Contains(t, out.String(), "pending=0")

	out.Reset()
	require.NoError(t, run(ctx, options{direction: "down", steps: 1, dsn: dsn}, &out))
	assert.Contains(t, out.String(), "pending=1")

	// возвращаем схему в исходное состояние
	require.NoError(t, run(ctx, options{direction: "up", dsn: dsn}, &out))
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	require.Error(t, err)

	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok, "expected exit error, got %v", err)
	assert.NotZero(t, exitErr.ExitCode())
}
