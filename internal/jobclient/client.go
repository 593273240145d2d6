package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vocabopt/internal/logging"
	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

// API is the optimizer service as seen by a session.
type API interface {
	Submit(ctx context.Context, req JobRequest) (v1.StartResponse, error)
	Progress(ctx context.Context) (v1.Progress, error)
	ListOutputs(ctx context.Context) ([]v1.OutputFile, error)
	Download(ctx context.Context, name string, w io.Writer) (int64, error)
	Test(ctx context.Context) (v1.TestResponse, error)
}

// requestIDHeader matches the header the service's request-ID middleware reads.
const requestIDHeader = "X-Request-Id"

// Client talks to the optimizer service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.client.Timeout = d }
}

// WithClientLogger sets the logger used for request tracing.
func WithClientLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newRequest tags the request with the context's request ID, minting one
// when ctx carries none, so client logs and the service share it.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	id := logging.RequestIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logging.WithRequestID(ctx, id)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(requestIDHeader, id)
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Trace(req.Context(), "service request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logger.Trace(req.Context(), "service request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// Submit posts a job as a multipart form. Any non-2xx response becomes a
// *SubmissionError carrying the service's error text or the fallback message.
func (c *Client) Submit(ctx context.Context, jr JobRequest) (v1.StartResponse, error) {
	body, contentType, err := encodeJobRequest(jr)
	if err != nil {
		return v1.StartResponse{}, &SubmissionError{Message: FallbackSubmitMessage, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, v1.PathOptimize, body)
	if err != nil {
		return v1.StartResponse{}, &SubmissionError{Message: FallbackSubmitMessage, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req)
	if err != nil {
		return v1.StartResponse{}, &SubmissionError{Message: FallbackSubmitMessage, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := FallbackSubmitMessage
		var er v1.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return v1.StartResponse{}, &SubmissionError{Status: resp.StatusCode, Message: msg}
	}

	// The accept body is informational only.
	var start v1.StartResponse
	_ = json.Unmarshal(raw, &start)
	return start, nil
}

func encodeJobRequest(jr JobRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile(v1.FieldSentenceFile, jr.File.Name)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(jr.File.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	fields := [][2]string{
		{v1.FieldWordListURL, jr.WordListURL},
		{v1.FieldMaxSentences, strconv.Itoa(jr.MaxSentences)},
		{v1.FieldStrictness, jr.Strictness},
	}
	if jr.Algorithm != "" {
		fields = append(fields, [2]string{v1.FieldAlgorithm, jr.Algorithm})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// Progress fetches the current snapshot of the active job.
func (c *Client) Progress(ctx context.Context) (v1.Progress, error) {
	var p v1.Progress
	if err := c.getJSON(ctx, v1.PathProgress, &p); err != nil {
		return v1.Progress{}, err
	}
	return p, nil
}

// ListOutputs returns the produced artifacts, most recent first.
func (c *Client) ListOutputs(ctx context.Context) ([]v1.OutputFile, error) {
	var resp v1.ListOutputsResponse
	if err := c.getJSON(ctx, v1.PathListOutputs, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// Test calls the connectivity endpoint.
func (c *Client) Test(ctx context.Context) (v1.TestResponse, error) {
	var resp v1.TestResponse
	if err := c.getJSON(ctx, v1.PathTest, &resp); err != nil {
		return v1.TestResponse{}, err
	}
	return resp, nil
}

// Health calls the liveness endpoint.
func (c *Client) Health(ctx context.Context) (v1.HealthResponse, error) {
	var resp v1.HealthResponse
	if err := c.getJSON(ctx, v1.PathHealth, &resp); err != nil {
		return v1.HealthResponse{}, err
	}
	return resp, nil
}

// Download streams the named output into w.
func (c *Client) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, v1.PathDownload+url.PathEscape(name), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError(resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx response from a read endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Message)
}

func statusError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode}
	var er v1.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er); err == nil {
		se.Message = er.Error
	}
	return se
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
