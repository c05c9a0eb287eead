// Package fetch implements the SDMX REST client using gocolly.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/sdmxkit/catalog-builder/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	// BaseURL is the SDMX REST root, e.g. https://sdmx.oecd.org/public/rest.
	BaseURL   string
	UserAgent string
	// Timeout bounds each structure request.
	Timeout time.Duration
	// DirectoryTimeout bounds the (much larger) dataflow listing request.
	DirectoryTimeout time.Duration
}

// StatusError reports a non-2xx HTTP response. The scheduler's failure
// classifier branches on the code.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d fetching %s", e.StatusCode, e.URL)
}

// Client fetches SDMX documents over HTTP.
type Client struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Client. A base collector is cloned per request so each call
// gets fresh hooks without re-dialing.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DirectoryTimeout == 0 {
		cfg.DirectoryTimeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Client{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// ListDataflows retrieves the full dataset directory listing. This call is
// cheap for the remote and is not quota governed.
func (c *Client) ListDataflows(ctx context.Context) ([]byte, error) {
	return c.get(ctx, c.cfg.BaseURL+"/dataflow/All", c.cfg.DirectoryTimeout)
}

// GetStructure retrieves the raw datastructure document for one definition.
// Every call counts against the remote quota.
func (c *Client) GetStructure(ctx context.Context, agency, key string) ([]byte, error) {
	url := fmt.Sprintf("%s/datastructure/%s/%s", c.cfg.BaseURL, agency, key)
	body, err := c.get(ctx, url, c.cfg.Timeout)
	metrics.ObserveStructureRequest(statusClass(err))
	return body, err
}

func (c *Client) get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	var (
		body     []byte
		fetchErr error
	)

	collector := c.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(c.transport)

	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			fetchErr = &StatusError{StatusCode: r.StatusCode, URL: url}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		return body, nil
	}
}

func statusClass(err error) string {
	if err == nil {
		return "2xx"
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return "network"
	}
	return strconv.Itoa(statusErr.StatusCode/100) + "xx"
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
