package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eringen/podsite"
	"github.com/eringen/podsite/cdn"
)

type passthroughCompiler struct{}

func (passthroughCompiler) Compile(_ context.Context, _, source string, _ []string) (string, error) {
	return source, nil
}

// rejectingStorage fails every upload the way an unreachable zone would.
type rejectingStorage struct{}

func (rejectingStorage) Put(_ context.Context, key, _ string, _ io.Reader, _ int64) error {
	return &cdn.UploadError{Key: key, Status: 503, Body: "unavailable"}
}

func (rejectingStorage) Clean(context.Context, string) error { return nil }

func (rejectingStorage) Target() string { return "rejecting:test" }

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIWith(t, nil, args...)
}

func runCLIWith(t *testing.T, opts []podsite.Option, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(append([]podsite.Option{
		podsite.WithLogger(zaptest.NewLogger(t)),
		podsite.WithStyleCompiler(passthroughCompiler{}),
	}, opts...)...)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SITE_URL", "SITE_NAME", "PODSITE_ENV", "CDN_BACKEND", "CDN_CONCURRENCY",
		"BUNNY_STORAGE_ZONE", "BUNNY_API_KEY", "BUNNY_REGION", "LOG_FILE",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	require.Equal(t, "podsite dev\n", out)
}

func TestNewBuildAndUpload(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "night-shift")

	out, err := runCLI(t, "new", dir)
	require.NoError(t, err)
	require.Contains(t, out, "created "+filepath.Join(dir, "podsite.toml"))

	_, err = runCLI(t, "new", dir)
	require.ErrorContains(t, err, "already exists")

	out, err = runCLI(t, "build", "-C", dir)
	require.NoError(t, err)
	require.Contains(t, out, "Built ")
	require.FileExists(t, filepath.Join(dir, "_site", "index.html"))

	// Without credentials a build with --upload still succeeds.
	_, err = runCLI(t, "build", "-C", dir, "--upload")
	require.NoError(t, err)

	_, err = runCLI(t, "upload", "-C", dir)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "credentials"), err.Error())
}

func TestUploadFailuresAreReported(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "night-shift")
	_, err := runCLI(t, "new", dir)
	require.NoError(t, err)
	_, err = runCLI(t, "build", "-C", dir)
	require.NoError(t, err)

	opts := []podsite.Option{podsite.WithStorage(rejectingStorage{})}
	out, err := runCLIWith(t, opts, "upload", "-C", dir)
	require.NoError(t, err, "per-file failures do not fail the command")
	require.Contains(t, out, "503")
	require.Contains(t, out, "0 uploaded")

	out, err = runCLIWith(t, opts, "uploads", "-C", dir)
	require.NoError(t, err)
	require.Contains(t, out, "0 files")
}

func TestCommandsRejectArgs(t *testing.T) {
	_, err := runCLI(t, "new")
	require.Error(t, err)
	_, err = runCLI(t, "build", "extra")
	require.Error(t, err)
}

func TestDisplayAddr(t *testing.T) {
	require.Equal(t, "localhost:8080", displayAddr(":8080"))
	require.Equal(t, "0.0.0.0:9000", displayAddr("0.0.0.0:9000"))
}
