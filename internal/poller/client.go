package poller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const maxResponseBodySize = 1 << 20 // 1MB

// RequestIDHeader carries a per-request identifier so backend logs can be
// matched with desk logs.
const RequestIDHeader = "X-Request-ID"

// connection pooling limits; the desk talks to a single backend host
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 4
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the result of an HTTP request made by [Client].
//
// Response captures the body (limited to 1MB), status code, latency and any
// transport error. A non-2xx status is not an error at this level; use
// [CheckStatus] to turn it into an [HTTPError].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// RequestID is the value sent in the X-Request-ID header.
	RequestID string

	// Error is nil when a response was received. Transport failures are
	// reported as *[NetworkError].
	Error error
}

// Form is a multipart/form-data payload with exactly one file part.
type Form struct {
	// FileField is the form field name of the file part.
	FileField string

	// FileName is the client-side file name sent with the file part.
	FileName string

	// File supplies the file contents.
	File io.Reader

	// Fields are extra text fields written after the file part, in order.
	Fields [][2]string
}

// Client is an HTTP client wrapper for talking to the staff-records backend.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Response bodies are limited to 1MB.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new [Client] with its own connection pool.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch performs a body-less HTTP request and returns a structured [Response].
//
// If method is empty, GET is used. The timeout is applied via context
// cancellation. Fetch always returns a Response; errors are captured in the
// Error field rather than returned separately.
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, timeout time.Duration) Response {
	if method == "" {
		method = http.MethodGet
	}
	return c.do(ctx, method, url, headers, "", nil, timeout)
}

// Upload POSTs form as multipart/form-data and returns a structured [Response].
//
// The payload is buffered in memory before sending so the request carries a
// Content-Length, which the backend's upload handler expects.
func (c *Client) Upload(ctx context.Context, url string, headers map[string]string, form Form, timeout time.Duration) Response {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(form.FileField, form.FileName)
	if err != nil {
		return Response{Error: fmt.Errorf("failed to create form file: %w", err)}
	}
	if _, err := io.Copy(part, form.File); err != nil {
		return Response{Error: fmt.Errorf("failed to read upload file: %w", err)}
	}
	for _, kv := range form.Fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return Response{Error: fmt.Errorf("failed to write form field %q: %w", kv[0], err)}
		}
	}
	if err := mw.Close(); err != nil {
		return Response{Error: fmt.Errorf("failed to finish multipart body: %w", err)}
	}

	return c.do(ctx, http.MethodPost, url, headers, mw.FormDataContentType(), &buf, timeout)
}

func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, contentType string, body io.Reader, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency:   time.Since(start),
			RequestID: requestID,
			Error:     &NetworkError{Method: method, URL: url, Err: err},
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// read body with size limit
	limitedReader := io.LimitReader(resp.Body, maxResponseBodySize)
	respBody, err := io.ReadAll(limitedReader)
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			RequestID:  requestID,
			Error:      &NetworkError{Method: method, URL: url, Err: fmt.Errorf("failed to read response body: %w", err)},
		}
	}

	return Response{
		Body:       respBody,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
		RequestID:  requestID,
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
