// Package fetch retrieves remote CSV and JSON documents for the loaders.
package fetch

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	apperrors "covidqc/internal/errors"
	"covidqc/internal/frame"
	"covidqc/internal/infrastructure"
)

// DefaultTimeout bounds every request
const DefaultTimeout = time.Second

const userAgent = "covidqc-fetch/1.0"

// Client fetches documents over HTTP
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithTimeout overrides the request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit spaces requests at rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransport replaces the underlying round tripper
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = otelhttp.NewTransport(rt)
	}
}

// NewClient creates a client with DefaultTimeout and no rate limit
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "fetch"))
	return c
}

// CSV downloads url and parses it as a header-first CSV document into a
// frame of string columns.
func (c *Client) CSV(ctx context.Context, url string) (*frame.Frame, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseCSV(body)
}

// JSON downloads url and decodes the body into v
func (c *Client) JSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.NewParsingError(fmt.Sprintf("decode %s", url), err).WithContext("url", url)
	}
	return nil
}

// ParseCSV parses a header-first CSV document. A leading byte order mark is
// dropped and ragged rows are padded or truncated to the header width.
func ParseCSV(body []byte) (*frame.Frame, error) {
	r := csv.NewReader(transform.NewReader(
		bytes.NewReader(body), unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, apperrors.NewParsingError("empty CSV document", nil)
	}
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read CSV header", err)
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read CSV row", err)
		}
		records = append(records, rec)
	}
	return frame.FromRecords(header, records), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperrors.NewTimeoutError(fmt.Sprintf("rate limit wait for %s", url), err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("invalid request for %s", url), err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "request failed",
			slog.String("url", url),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewTimeoutError(fmt.Sprintf("GET %s timed out", url), err).WithContext("url", url)
		}
		return nil, apperrors.NewNetworkError(fmt.Sprintf("GET %s", url), err).WithContext("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, apperrors.NewNetworkError(fmt.Sprintf("Could not get %s, status=%d", url, resp.StatusCode), nil).
			WithContext("url", url).
			WithContext("status", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewTimeoutError(fmt.Sprintf("reading %s timed out", url), err)
		}
		return nil, apperrors.NewNetworkError(fmt.Sprintf("failed to read %s", url), err)
	}

	infrastructure.AddSpanEvent(ctx, "fetch.body",
		attribute.String("url", url),
		attribute.Int("bytes", len(body)))
	c.logger.DebugContext(ctx, "fetched",
		slog.String("url", url),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)),
	)
	return body, nil
}
