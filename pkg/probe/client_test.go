package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/correlation"
)

type failingClient struct{ err error }

func (f failingClient) Do(*http.Request) (*http.Response, error) {
	return nil, f.err
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient("ftp://localhost", nil)
	assert.Error(t, err)

	_, err = NewClient("://bad", nil)
	assert.Error(t, err)

	c, err := NewClient("http://localhost:3000/", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", c.BaseURL())
}

func TestClientSetsHeaders(t *testing.T) {
	var got *http.Request
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	ctx := correlation.WithID(context.Background(), "abc-123")
	resp, err := c.Do(ctx, Render, []byte(`{"gridSize":9}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/render", got.URL.Path)
	assert.Equal(t, "abc-123", got.Header.Get(correlation.HeaderName))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "image/*", got.Header.Get("Accept"))
	assert.Equal(t, userAgent, got.Header.Get("User-Agent"))
	assert.Equal(t, `{"gridSize":9}`, string(body))
}

func TestClientTransportError(t *testing.T) {
	refused := errors.New("connection refused")
	c, err := NewClient("http://localhost:3000", failingClient{err: refused})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Health, nil)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindTransport, perr.Kind)
	assert.Equal(t, Health.Name, perr.Step)
	assert.ErrorIs(t, err, refused)
	assert.Empty(t, perr.Body)
}

func TestClientNon2xxCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "browser down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Health, nil)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindHTTPStatus, perr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
	assert.Equal(t, "browser down\n", string(perr.Body))
	assert.Contains(t, perr.Error(), "health: http_status:")
}

func TestBodyKind(t *testing.T) {
	assert.Equal(t, "image/*", BodyBinary.accept())
	assert.Equal(t, "application/json", BodyJSON.accept())
}
