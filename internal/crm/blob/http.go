package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"go.uber.org/zap"
)

// HTTPStore talks to a remote blob API:
//
//	PUT    {base}/{key}          upload, responds with an Object
//	DELETE {base}/{key}          remove
//	GET    {base}?prefix={p}     list, responds with {"blobs": [Object...]}
//
// Requests carry the token as a bearer credential. Transient failures
// (network errors, 5xx, 429) are retried with exponential backoff.
type HTTPStore struct {
	baseURL    string
	token      string
	client     *http.Client
	logger     *zap.Logger
	maxRetries uint64
}

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

// WithMaxRetries bounds the retries of one request.
func WithMaxRetries(n uint64) HTTPOption {
	return func(s *HTTPStore) { s.maxRetries = n }
}

// NewHTTPStore returns a client for the blob API at baseURL.
func NewHTTPStore(baseURL, token string, logger *zap.Logger, opts ...HTTPOption) *HTTPStore {
	s := &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		client:     &http.Client{Timeout: 5 * time.Minute},
		logger:     logger.Named("blob_http"),
		maxRetries: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPStore) objectURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (se *statusError) Error() string {
	return fmt.Sprintf("blob api returned %d: %s", se.code, se.body)
}

func (s *HTTPStore) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = time.Minute
	return backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx)
}

// do sends one request built by build, retrying transient failures. A nil
// response is never returned without an error.
func (s *HTTPStore) do(ctx context.Context, op string, build func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		r, err := s.client.Do(req)
		if err != nil {
			if errors.Is(err, e.ErrFileTooLarge) {
				return backoff.Permanent(err)
			}
			s.logger.Warn("Blob request failed",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		if r.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
			r.Body.Close()
			serr := &statusError{code: r.StatusCode, body: strings.TrimSpace(string(body))}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				s.logger.Warn("Blob request failed",
					zap.String("op", op),
					zap.Int("attempt", attempt),
					zap.Int("status", r.StatusCode),
				)
				return serr
			}
			return backoff.Permanent(serr)
		}
		resp = r
		return nil
	}, s.policy(ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Put uploads r. A request body that is an io.Seeker is rewound between
// attempts; any other reader is sent once.
func (s *HTTPStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Object, error) {
	seeker, rewindable := r.(io.Seeker)
	sent := false
	resp, err := s.do(ctx, "put", func() (*http.Request, error) {
		if sent {
			if !rewindable {
				return nil, fmt.Errorf("upload of %s cannot be retried", key)
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
		}
		sent = true
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(key), io.NopCloser(r))
		if err != nil {
			return nil, err
		}
		req.ContentLength = size
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	defer resp.Body.Close()

	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return Object{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if obj.Pathname == "" {
		obj.Pathname = key
	}
	if obj.URL == "" {
		obj.URL = s.objectURL(key)
	}
	if obj.ContentType == "" {
		obj.ContentType = contentType
	}
	if obj.Size == 0 {
		obj.Size = size
	}
	if obj.UploadedAt.IsZero() {
		obj.UploadedAt = time.Now()
	}
	return obj, nil
}

// Delete removes key.
func (s *HTTPStore) Delete(ctx context.Context, key string) error {
	resp, err := s.do(ctx, "delete", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	})
	if err != nil {
		var serr *statusError
		if errors.As(err, &serr) && serr.code == http.StatusNotFound {
			return fmt.Errorf("%w: object %s", e.ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	resp.Body.Close()
	return nil
}

// List returns objects under prefix.
func (s *HTTPStore) List(ctx context.Context, prefix string) ([]Object, error) {
	resp, err := s.do(ctx, "list", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?prefix="+url.QueryEscape(prefix), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
	}
	defer resp.Body.Close()

	var body struct {
		Blobs []Object `json:"blobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	if body.Blobs == nil {
		body.Blobs = []Object{}
	}
	return body.Blobs, nil
}
