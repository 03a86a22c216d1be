package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/stubserver"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEOGRID_BASE_URL", "GEOGRID_REQUEST_FILE", "GEOGRID_OUTPUT_FILE", "GEOGRID_TIMEOUT",
		"GEOGRID_EXTENDED", "GEOGRID_PUSHGATEWAY_URL", "GEOGRID_JOB_NAME", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func writeRequest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "request-example.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCommandRunsProbe(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(stubserver.New(stubserver.Options{}))
	defer srv.Close()
	dir := t.TempDir()
	output := filepath.Join(dir, "output.png")

	stdout, stderr, err := execute(t,
		"--base-url", srv.URL,
		"--request", writeRequest(t, dir),
		"--output", output,
	)

	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "All tests completed!")
	assert.Contains(t, stderr, `"message":"probe run finished"`)
	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestRootCommandReadsEnvironment(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(stubserver.New(stubserver.Options{}))
	defer srv.Close()
	dir := t.TempDir()

	t.Setenv("GEOGRID_BASE_URL", srv.URL)
	t.Setenv("GEOGRID_REQUEST_FILE", writeRequest(t, dir))
	t.Setenv("GEOGRID_OUTPUT_FILE", filepath.Join(dir, "env.png"))
	t.Setenv("GEOGRID_EXTENDED", "true")

	stdout, _, err := execute(t)

	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "[7/7] Render base64")
	assert.FileExists(t, filepath.Join(dir, "env.png"))
}

func TestRootCommandFailsWhenServerIsDown(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	dir := t.TempDir()

	stdout, _, err := execute(t,
		"--base-url", url,
		"--request", writeRequest(t, dir),
		"--output", filepath.Join(dir, "output.png"),
		"--log-level", "error",
	)

	assert.ErrorIs(t, err, errProbeFailed)
	assert.Equal(t, 1, strings.Count(stdout, "Error:"))
	assert.NoFileExists(t, filepath.Join(dir, "output.png"))
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)

	_, _, err := execute(t, "--base-url", "ftp://example.com", "--log-level", "chatty")

	require.Error(t, err)
	assert.NotErrorIs(t, err, errProbeFailed)
	assert.Contains(t, err.Error(), "scheme")
	assert.Contains(t, err.Error(), "log level")
}

func TestRootCommandPushesMetrics(t *testing.T) {
	clearEnv(t)
	stub := httptest.NewServer(stubserver.New(stubserver.Options{}))
	defer stub.Close()

	var pushes atomic.Int32
	var pushedPath atomic.Value
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		pushes.Add(1)
		pushedPath.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()
	dir := t.TempDir()

	stdout, _, err := execute(t,
		"--base-url", stub.URL,
		"--request", writeRequest(t, dir),
		"--output", filepath.Join(dir, "output.png"),
		"--pushgateway", gw.URL,
		"--job", "geogrid_smoke",
	)

	require.NoError(t, err, stdout)
	assert.Equal(t, int32(1), pushes.Load())
	assert.True(t, strings.HasPrefix(pushedPath.Load().(string), "/metrics/job/geogrid_smoke"))
}

func TestPushFailureDoesNotFailRun(t *testing.T) {
	clearEnv(t)
	stub := httptest.NewServer(stubserver.New(stubserver.Options{}))
	defer stub.Close()
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer gw.Close()
	dir := t.TempDir()

	_, stderr, err := execute(t,
		"--base-url", stub.URL,
		"--request", writeRequest(t, dir),
		"--output", filepath.Join(dir, "output.png"),
		"--pushgateway", gw.URL,
	)

	assert.NoError(t, err)
	assert.Contains(t, stderr, "metrics push failed")
}

func TestServeStubCommandIsRegistered(t *testing.T) {
	cmd := newRootCmd(io.Discard, io.Discard)
	sub, _, err := cmd.Find([]string{"serve-stub"})
	require.NoError(t, err)
	assert.Equal(t, "serve-stub", sub.Name())
	assert.NotNil(t, sub.Flags().Lookup("listen"))
}
