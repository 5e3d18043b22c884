package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	e "github.com/gartstein/staffing/internal/crm/errors"
)

// DiskStore keeps objects as files below a root directory. Object URLs are
// baseURL joined with the key.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates root if needed.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// resolve maps a key to a file path, rejecting keys that escape root.
func (d *DiskStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+key {
		return "", fmt.Errorf("%w: bad object key %q", e.ErrInvalidInput, key)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *DiskStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (Object, error) {
	p, err := d.resolve(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Object{}, err
	}

	f, err := os.Create(p)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create object: %w", err)
	}
	n, err := io.Copy(f, ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(p)
		return Object{}, fmt.Errorf("failed to write object: %w", err)
	}

	return Object{
		Pathname:    key,
		URL:         d.baseURL + "/" + key,
		Size:        n,
		ContentType: contentType,
		UploadedAt:  time.Now(),
	}, nil
}

func (d *DiskStore) Delete(_ context.Context, key string) error {
	p, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: object %s", e.ErrNotFound, key)
		}
		return err
	}
	return nil
}

func (d *DiskStore) List(ctx context.Context, prefix string) ([]Object, error) {
	out := []Object{}
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		out = append(out, Object{
			Pathname:    key,
			URL:         d.baseURL + "/" + key,
			Size:        info.Size(),
			ContentType: mime.TypeByExtension(path.Ext(key)),
			UploadedAt:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	return out, nil
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
