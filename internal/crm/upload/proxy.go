package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/gartstein/staffing/internal/crm/blob"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/models"
	"go.uber.org/zap"
)

// ProgressFunc receives the number of bytes sent so far and the total.
type ProgressFunc func(sent, total int64)

// Request is one file to transfer.
type Request struct {
	Context     Context
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	// UserID scopes user-scoped keys.
	UserID string
	// Folder overrides the policy folder.
	Folder   string
	Progress ProgressFunc
}

// Proxy validates files and streams them to a blob store.
type Proxy struct {
	store    blob.Store
	logger   *zap.Logger
	policies map[Context]Policy
	now      func() time.Time
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithPolicies overrides entries of the default policy table.
func WithPolicies(overrides map[Context]Policy) Option {
	return func(p *Proxy) {
		for c, pol := range overrides {
			pol.Context = c
			p.policies[c] = pol
		}
	}
}

// WithClock replaces time.Now for key timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Proxy) { p.now = now }
}

// NewProxy returns a proxy writing to store.
func NewProxy(store blob.Store, logger *zap.Logger, opts ...Option) *Proxy {
	p := &Proxy{
		store:    store,
		logger:   logger.Named("upload_proxy"),
		policies: DefaultPolicies(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the policy of c, falling back to the generic one.
func (p *Proxy) Policy(c Context) Policy {
	if pol, ok := p.policies[c]; ok {
		return pol
	}
	return p.policies[ContextGeneric]
}

// Policies returns a copy of the active policy table.
func (p *Proxy) Policies() map[Context]Policy {
	return maps.Clone(p.policies)
}

// Upload validates req and streams its body to the blob store. The object is
// stored only when validation passes; a body longer than the policy allows is
// cut off and rejected.
func (p *Proxy) Upload(ctx context.Context, req Request) (models.FileMetadata, error) {
	if req.Body == nil || req.Filename == "" {
		return models.FileMetadata{}, fmt.Errorf("%w: No file provided", e.ErrInvalidInput)
	}
	pol := p.Policy(req.Context)
	if err := Validate(pol, req.Filename, req.ContentType, req.Size); err != nil {
		p.logger.Info("Upload rejected",
			zap.String("context", string(pol.Context)),
			zap.String("filename", req.Filename),
			zap.Int64("size", req.Size),
			zap.Error(err),
		)
		return models.FileMetadata{}, err
	}

	now := p.now()
	key := ObjectKey(pol, req.Folder, req.UserID, now, req.Filename)
	body := &countingReader{
		r:        req.Body,
		total:    req.Size,
		limit:    pol.MaxBytes,
		progress: req.Progress,
	}

	obj, err := p.store.Put(ctx, key, body, req.Size, req.ContentType)
	if err != nil {
		if body.exceeded {
			// an aborted PUT may still have left a partial object
			if derr := p.store.Delete(ctx, key); derr != nil && !errors.Is(derr, e.ErrNotFound) {
				p.logger.Warn("Failed to remove partial object", zap.String("key", key), zap.Error(derr))
			}
			return models.FileMetadata{}, fmt.Errorf("%w: File size exceeds %s limit", e.ErrFileTooLarge, limitLabel(pol.MaxBytes))
		}
		p.logger.Error("Failed to store object", zap.String("key", key), zap.Error(err))
		return models.FileMetadata{}, fmt.Errorf("failed to upload file: %w", err)
	}

	size := req.Size
	if size <= 0 {
		size = body.sent
	}
	p.logger.Info("File uploaded",
		zap.String("pathname", obj.Pathname),
		zap.Int64("size", size),
		zap.String("user_id", req.UserID),
	)
	return models.FileMetadata{
		URL:         obj.URL,
		Pathname:    obj.Pathname,
		ContentType: req.ContentType,
		Size:        size,
		UploadedAt:  now,
		Filename:    req.Filename,
	}, nil
}

// Delete removes a stored object by pathname.
func (p *Proxy) Delete(ctx context.Context, pathname string) error {
	if err := p.store.Delete(ctx, pathname); err != nil {
		return err
	}
	p.logger.Info("File deleted", zap.String("pathname", pathname))
	return nil
}

// List returns stored objects under prefix.
func (p *Proxy) List(ctx context.Context, prefix string) ([]blob.Object, error) {
	return p.store.List(ctx, prefix)
}

// countingReader reports progress and enforces the size limit while the
// body is streamed.
type countingReader struct {
	r        io.Reader
	sent     int64
	total    int64
	limit    int64
	exceeded bool
	progress ProgressFunc
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.sent += int64(n)
	if c.sent > c.limit {
		c.exceeded = true
		return n, e.ErrFileTooLarge
	}
	if n > 0 && c.progress != nil {
		c.progress(c.sent, c.total)
	}
	return n, err
}

// Seek rewinds the body for retries when the underlying reader allows it.
// A body that already ran past the limit is never replayed.
func (c *countingReader) Seek(offset int64, whence int) (int64, error) {
	if c.exceeded {
		return 0, e.ErrFileTooLarge
	}
	s, ok := c.r.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("body is not seekable")
	}
	pos, err := s.Seek(offset, whence)
	if err == nil {
		c.sent = pos
	}
	return pos, err
}
