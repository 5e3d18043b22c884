package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDiskStorePutListDelete(t *testing.T) {
	d, err := NewDiskStore(t.TempDir(), "http://localhost:8080/blobs/")
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := d.Put(ctx, "resumes/u1/1-cv.pdf", strings.NewReader("pdf-bytes"), 9, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/blobs/resumes/u1/1-cv.pdf", obj.URL)
	assert.Equal(t, int64(9), obj.Size)

	_, err = d.Put(ctx, "vendors/2_a.pdf", strings.NewReader("x"), 1, "application/pdf")
	require.NoError(t, err)

	all, err := d.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	resumes, err := d.List(ctx, "resumes/")
	require.NoError(t, err)
	require.Len(t, resumes, 1)
	assert.Equal(t, "resumes/u1/1-cv.pdf", resumes[0].Pathname)

	require.NoError(t, d.Delete(ctx, "resumes/u1/1-cv.pdf"))
	assert.ErrorIs(t, d.Delete(ctx, "resumes/u1/1-cv.pdf"), e.ErrNotFound)
}

func TestDiskStoreRejectsEscapingKeys(t *testing.T) {
	d, err := NewDiskStore(t.TempDir(), "")
	require.NoError(t, err)

	for _, key := range []string{"../etc/passwd", "a/../../b", "", "/abs"} {
		_, err := d.Put(context.Background(), key, strings.NewReader("x"), 1, "text/plain")
		assert.ErrorIs(t, err, e.ErrInvalidInput, "key %q", key)
	}
}

func TestHTTPStorePut(t *testing.T) {
	var gotAuth, gotType, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(Object{URL: "https://cdn.example.com" + r.URL.Path})
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "secret", zaptest.NewLogger(t))
	obj, err := s.Put(context.Background(), "general/1_a b.pdf", strings.NewReader("data"), 4, "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/pdf", gotType)
	assert.Equal(t, "/general/1_a b.pdf", gotPath)
	assert.Equal(t, "data", string(gotBody))
	assert.Equal(t, "general/1_a b.pdf", obj.Pathname)
	assert.Equal(t, int64(4), obj.Size)
	assert.False(t, obj.UploadedAt.IsZero())
}

func TestHTTPStoreRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "data", string(body), "body is rewound between attempts")
		_ = json.NewEncoder(w).Encode(Object{})
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "", zaptest.NewLogger(t))
	_, err := s.Put(context.Background(), "k", bytes.NewReader([]byte("data")), 4, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPStoreDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "", zaptest.NewLogger(t))
	err := s.Delete(context.Background(), "gone.pdf")
	assert.ErrorIs(t, err, e.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

// oversizeBody fails like a size-limited upload body once n bytes are read.
type oversizeBody struct {
	n, read int
	rewinds int
}

func (b *oversizeBody) Read(p []byte) (int, error) {
	if b.read >= b.n {
		return 0, e.ErrFileTooLarge
	}
	k := min(len(p), b.n-b.read)
	b.read += k
	return k, nil
}

func (b *oversizeBody) Seek(int64, int) (int64, error) {
	b.rewinds++
	b.read = 0
	return 0, nil
}

func TestHTTPStoreDoesNotRetrySizeLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	body := &oversizeBody{n: 64 << 10}
	s := NewHTTPStore(srv.URL, "", zaptest.NewLogger(t), WithMaxRetries(4))
	_, err := s.Put(context.Background(), "general/big.pdf", body, -1, "application/pdf")
	assert.ErrorIs(t, err, e.ErrFileTooLarge)
	assert.Equal(t, 0, body.rewinds)
	assert.LessOrEqual(t, calls.Load(), int32(1))
}

func TestHTTPStoreGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "", zaptest.NewLogger(t), WithMaxRetries(2))
	_, err := s.List(context.Background(), "resumes/")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPStoreList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "resumes/", r.URL.Query().Get("prefix"))
		_, _ = w.Write([]byte(`{"blobs":[{"pathname":"resumes/a.pdf","size":3}]}`))
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "", zaptest.NewLogger(t))
	objs, err := s.List(context.Background(), "resumes/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "resumes/a.pdf", objs[0].Pathname)
}
