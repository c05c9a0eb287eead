package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:   baseURL,
		UserAgent: "catalog-builder-test/0.1",
		Timeout:   2 * time.Second,
	})
}

func TestGetStructure_Success(t *testing.T) {
	t.Parallel()

	var sawUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawUA.Store(r.Header.Get("User-Agent"))
		require.Equal(t, "/datastructure/OECD.ELS.HD/DSD_SHA", r.URL.Path)
		fmt.Fprint(w, `<Structure/>`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	body, err := c.GetStructure(context.Background(), "OECD.ELS.HD", "DSD_SHA")
	require.NoError(t, err)
	require.Equal(t, []byte(`<Structure/>`), body)
	require.Equal(t, "catalog-builder-test/0.1", sawUA.Load())
}

func TestGetStructure_StatusErrors(t *testing.T) {
	t.Parallel()

	codes := []int{http.StatusTooManyRequests, http.StatusNotFound, http.StatusInternalServerError}
	for _, code := range codes {
		t.Run(fmt.Sprintf("status %d", code), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(code)
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			_, err := c.GetStructure(context.Background(), "OECD", "DSD_X")
			require.Error(t, err)

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			require.Equal(t, code, statusErr.StatusCode)
		})
	}
}

func TestListDataflows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/dataflow/All", r.URL.Path)
		fmt.Fprint(w, `<Dataflows/>`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	body, err := c.ListDataflows(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte(`<Dataflows/>`), body)
}

func TestGet_ContextCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	c := newTestClient(srv.URL)
	_, err := c.ListDataflows(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestGet_ConnectionRefusedIsNotStatusError(t *testing.T) {
	t.Parallel()

	c := newTestClient("http://127.0.0.1:1")
	_, err := c.ListDataflows(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.False(t, errors.As(err, &statusErr))
}
