package dubbing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"dubber/internal/config"
	"dubber/internal/logging"
	"dubber/internal/services"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultUploadTimeout  = 10 * time.Minute
	defaultUserAgent      = "dubber"
	maxErrorBody          = 512

	// RequestIDHeader carries the per-request correlation identifier.
	RequestIDHeader = "X-Request-ID"
	// FileField and LanguageField name the multipart parts of an upload.
	FileField     = "video"
	LanguageField = "language"
)

// ErrMalformedResponse marks a 2xx response whose body could not be decoded
// or failed validation.
var ErrMalformedResponse = errors.New("malformed response")

// Config captures the runtime settings required to talk to the backend.
type Config struct {
	BaseURL        string
	UserAgent      string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
}

// HTTPDoer describes the HTTP client used by the dubbing service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the dubbing backend over HTTP/JSON.
type Client struct {
	cfg       Config
	base      *url.URL
	http      HTTPDoer
	newID     func() string
	validate  *validator.Validate
	logger    *slog.Logger
	userAgent string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestIDFunc overrides how correlation identifiers are generated.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewClient constructs a backend client for the supplied base URL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, services.Wrap(services.ErrConfiguration, "dubbing", "client", "server url required", nil)
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "dubbing", "client", fmt.Sprintf("invalid server url %q", raw), err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = defaultUploadTimeout
	}
	cfg.BaseURL = raw
	c := &Client{
		cfg:       cfg,
		base:      base,
		http:      &http.Client{},
		newID:     uuid.NewString,
		validate:  newValidator(),
		logger:    logging.NewNop(),
		userAgent: strings.TrimSpace(cfg.UserAgent),
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "dubbing")
	return c, nil
}

// NewFromConfig builds a client from the application configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "dubbing", "client", "config required", nil)
	}
	return NewClient(Config{
		BaseURL:        cfg.Server.URL,
		UserAgent:      cfg.Server.UserAgent,
		RequestTimeout: cfg.RequestTimeout(),
		UploadTimeout:  cfg.UploadTimeout(),
	}, opts...)
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Submit uploads a media file with its target language and returns the job
// identifier assigned by the backend.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.Content == nil {
		return "", services.Wrap(services.ErrValidation, "dubbing", "upload", "content required", nil)
	}
	filename := filepath.Base(strings.TrimSpace(req.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return "", services.Wrap(services.ErrValidation, "dubbing", "upload", "filename required", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	body, contentType := streamMultipart(filename, req.Content, req.Language)
	defer body.Close()

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.endpoint("upload"), body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	var payload submitResponse
	if err := c.doJSON(httpReq, "upload", &payload); err != nil {
		return "", err
	}
	return payload.JobID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (StatusResponse, error) {
	var payload StatusResponse
	if err := requireJobID(jobID, "status"); err != nil {
		return payload, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, http.MethodGet, c.endpoint("status", jobID), nil)
	if err != nil {
		return payload, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if err := c.doJSON(httpReq, "status", &payload); err != nil {
		return StatusResponse{}, err
	}
	return payload, nil
}

// Cancel asks the backend to stop a job. Only success or failure is reported;
// the response body is ignored.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	if err := requireJobID(jobID, "cancel"); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.endpoint("cancel", jobID), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(httpReq, "cancel")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}

// Download streams the finished artifact into w and returns the number of
// bytes written together with the server-suggested file name, if any.
func (c *Client) Download(ctx context.Context, jobID string, w io.Writer) (int64, string, error) {
	if err := requireJobID(jobID, "download"); err != nil {
		return 0, "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, http.MethodGet, c.DownloadURL(jobID), nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := c.do(httpReq, "download")
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, "", c.transportError("download", err)
	}
	return n, attachmentName(resp.Header.Get("Content-Disposition")), nil
}

// DownloadURL returns the artifact location for a job. It is used as the
// job's result reference.
func (c *Client) DownloadURL(jobID string) string {
	return c.endpoint("download", jobID)
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	prefix := strings.TrimRight(c.base.Path, "/")
	u.Path = prefix + "/" + strings.Join(parts, "/")
	u.RawPath = strings.TrimRight(c.base.EscapedPath(), "/") + "/" + strings.Join(escaped, "/")
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "dubbing", "request", "build request", err)
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = c.newID()
	}
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// do issues the request and converts transport failures and non-2xx replies
// into classified errors. The caller owns the response body on success.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed",
			logging.String("op", op),
			logging.String(logging.FieldCorrelationID, req.Header.Get(RequestIDHeader)),
			logging.Error(err),
		)
		return nil, c.transportError(op, err)
	}
	c.logger.Debug("backend request",
		logging.String("op", op),
		logging.String("method", req.Method),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldCorrelationID, req.Header.Get(RequestIDHeader)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPStatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp, nil
}

func (c *Client) doJSON(req *http.Request, op string, target any) error {
	resp, err := c.do(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(target); err != nil {
		return fmt.Errorf("dubbing %s: %w: %w", op, ErrMalformedResponse, err)
	}
	if n, ok := target.(normalizer); ok {
		n.normalize()
	}
	if err := c.validate.Struct(target); err != nil {
		return fmt.Errorf("dubbing %s: %w: %w", op, ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) transportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "dubbing", op, "request timed out", err)
	}
	return services.Wrap(services.ErrTransient, "dubbing", op, "request failed", err)
}

func requireJobID(jobID, op string) error {
	if strings.TrimSpace(jobID) == "" {
		return services.Wrap(services.ErrValidation, "dubbing", op, "job id required", nil)
	}
	return nil
}

// streamMultipart encodes the upload without buffering the whole file.
func streamMultipart(filename string, content io.Reader, language string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			if err := mw.WriteField(LanguageField, language); err != nil {
				return err
			}
			part, err := mw.CreateFormFile(FileField, filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, content); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return ""
	}
	return filepath.Base(params["filename"])
}
