package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gartstein/staffing/internal/crm/blob"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockStore is a testify mock of blob.Store that drains the body on Put.
type MockStore struct {
	mock.Mock
	received []byte
}

func (m *MockStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (blob.Object, error) {
	data, err := io.ReadAll(r)
	m.received = data
	args := m.Called(ctx, key, size, contentType)
	if err != nil {
		return blob.Object{}, err
	}
	return args.Get(0).(blob.Object), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockStore) List(ctx context.Context, prefix string) ([]blob.Object, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]blob.Object), args.Error(1)
}

func TestValidateSizeBoundaries(t *testing.T) {
	policies := DefaultPolicies()

	tests := []struct {
		name    string
		context Context
		size    int64
		wantErr error
	}{
		{"generic at limit", ContextGeneric, 5 * mb, nil},
		{"generic over limit", ContextGeneric, 5*mb + 1, e.ErrFileTooLarge},
		{"resume at limit", ContextResume, 10 * mb, nil},
		{"resume over limit", ContextResume, 10*mb + 1, e.ErrFileTooLarge},
		{"endpoint at limit", ContextEndpoint, 10 * mb, nil},
		{"endpoint over limit", ContextEndpoint, 10*mb + 1, e.ErrFileTooLarge},
		{"attachment at limit", ContextAttachment, 50 * mb, nil},
		{"attachment over limit", ContextAttachment, 50*mb + 1, e.ErrFileTooLarge},
		{"empty file", ContextGeneric, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(policies[tt.context], "cv.pdf", TypePDF, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTypes(t *testing.T) {
	policies := DefaultPolicies()

	tests := []struct {
		name        string
		context     Context
		filename    string
		contentType string
		wantErr     bool
	}{
		{"pdf", ContextEndpoint, "a.pdf", TypePDF, false},
		{"doc", ContextEndpoint, "a.doc", TypeDOC, false},
		{"docx", ContextEndpoint, "a.docx", TypeDOCX, false},
		{"png rejected", ContextEndpoint, "a.png", "image/png", true},
		{"plain text rejected", ContextGeneric, "a.txt", "text/plain", true},
		{"pdf name with wrong type still rejected", ContextGeneric, "a.pdf", "image/png", true},
		{"wildcard accepts images", ContextAttachment, "a.png", "image/png", false},
		{"wildcard accepts unknown", ContextAttachment, "blob", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(policies[tt.context], tt.filename, tt.contentType, 10)
			if tt.wantErr {
				assert.ErrorIs(t, err, e.ErrUnsupportedType)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMessages(t *testing.T) {
	policies := DefaultPolicies()

	err := Validate(policies[ContextEndpoint], "a.png", "image/png", 1)
	assert.Contains(t, err.Error(), "Only PDF and Word documents are allowed")

	err = Validate(policies[ContextEndpoint], "a.pdf", TypePDF, 11*mb)
	assert.Contains(t, err.Error(), "File size exceeds 10MB limit")

	err = Validate(policies[ContextEndpoint], "a.png", "image/png", 11*mb)
	assert.ErrorIs(t, err, e.ErrUnsupportedType, "type is checked before size")
}

func TestParseAccept(t *testing.T) {
	assert.Equal(t, []string{TypePDF, TypeDOC, TypeDOCX}, ParseAccept(".pdf,.doc,.docx"))
	assert.Equal(t, []string{"image/png", ".md"}, ParseAccept("image/png, .md,"))

	p := Policy{MaxBytes: mb, Accept: ParseAccept(".md")}
	assert.NoError(t, Validate(p, "README.md", "text/markdown", 10), "suffix entries match by name")
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"résumé final.pdf":    "r_sum__final.pdf",
		"alice-cooper.v2.pdf": "alice-cooper.v2.pdf",
		"../../etc/passwd":    ".._.._etc_passwd",
		"a b\tc.docx":         "a_b_c.docx",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	policies := DefaultPolicies()

	assert.Equal(t, "resumes/u-1/1700000000123-my_cv.pdf",
		ObjectKey(policies[ContextEndpoint], "", "u-1", at, "my cv.pdf"))
	assert.Equal(t, "resumes/none/1700000000123-cv.pdf",
		ObjectKey(policies[ContextResume], "", "", at, "cv.pdf"))
	assert.Equal(t, "general/1700000000123_cv.pdf",
		ObjectKey(policies[ContextGeneric], "", "u-1", at, "cv.pdf"))
	assert.Equal(t, "vendors/1700000000123_a.pdf",
		ObjectKey(policies[ContextAttachment], FolderFor(models.EntityVendor), "", at, "a.pdf"))
}

func TestFolderFor(t *testing.T) {
	assert.Equal(t, "vendors", FolderFor(models.EntityVendor))
	assert.Equal(t, "resources", FolderFor(models.EntityResource))
	assert.Equal(t, "jobs", FolderFor(models.EntityJob))
	assert.Equal(t, "processes", FolderFor(models.EntityProcess))
	assert.Equal(t, "general", FolderFor(models.EntityOther))
	assert.Equal(t, "general", FolderFor(""))
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{500, "500 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{2500000, "2.38 MB"},
		{10 * mb, "10 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFileSize(tt.in), "%d", tt.in)
	}
}

func TestProxyUpload(t *testing.T) {
	store := new(MockStore)
	at := time.UnixMilli(1700000000000)
	p := NewProxy(store, zaptest.NewLogger(t), WithClock(func() time.Time { return at }))

	key := "resumes/u-7/1700000000000-cv.pdf"
	store.On("Put", mock.Anything, key, int64(5), TypePDF).
		Return(blob.Object{Pathname: key, URL: "https://cdn/" + key}, nil)

	var progress [][2]int64
	meta, err := p.Upload(context.Background(), Request{
		Context:     ContextEndpoint,
		Filename:    "cv.pdf",
		ContentType: TypePDF,
		Size:        5,
		Body:        strings.NewReader("hello"),
		UserID:      "u-7",
		Progress:    func(sent, total int64) { progress = append(progress, [2]int64{sent, total}) },
	})
	require.NoError(t, err)

	assert.Equal(t, models.FileMetadata{
		URL: "https://cdn/" + key, Pathname: key, ContentType: TypePDF,
		Size: 5, UploadedAt: at, Filename: "cv.pdf",
	}, meta)
	assert.Equal(t, "hello", string(store.received))
	require.NotEmpty(t, progress)
	assert.Equal(t, [2]int64{5, 5}, progress[len(progress)-1])
	store.AssertExpectations(t)
}

func TestProxyRejectsBeforeStoring(t *testing.T) {
	store := new(MockStore)
	p := NewProxy(store, zaptest.NewLogger(t))

	_, err := p.Upload(context.Background(), Request{
		Context: ContextEndpoint, Filename: "x.png", ContentType: "image/png", Size: 1, Body: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, e.ErrUnsupportedType)

	_, err = p.Upload(context.Background(), Request{Context: ContextEndpoint})
	assert.ErrorIs(t, err, e.ErrInvalidInput)

	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProxyCutsOffUnderstatedSize(t *testing.T) {
	store := new(MockStore)
	store.On("Put", mock.Anything, mock.Anything, int64(1), TypePDF).Return(blob.Object{}, nil)
	store.On("Delete", mock.Anything, mock.Anything).Return(e.ErrNotFound)

	p := NewProxy(store, zaptest.NewLogger(t), WithPolicies(map[Context]Policy{
		ContextGeneric: {MaxBytes: 4, Accept: []string{TypePDF}, KeyStyle: KeyFlat},
	}))
	_, err := p.Upload(context.Background(), Request{
		Context: ContextGeneric, Filename: "a.pdf", ContentType: TypePDF, Size: 1,
		Body: bytes.NewReader([]byte("way more than four bytes")),
	})
	assert.ErrorIs(t, err, e.ErrFileTooLarge)
	store.AssertCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestProxyOversizeBodyIsSentOnce(t *testing.T) {
	var puts, deletes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			puts.Add(1)
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusServiceUnavailable)
		case http.MethodDelete:
			deletes.Add(1)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	objects := blob.NewHTTPStore(srv.URL, "", zaptest.NewLogger(t), blob.WithMaxRetries(4))
	p := NewProxy(objects, zaptest.NewLogger(t))

	_, err := p.Upload(context.Background(), Request{
		Context:     ContextGeneric,
		Filename:    "big.pdf",
		ContentType: TypePDF,
		Size:        -1,
		Body:        strings.NewReader(strings.Repeat("x", 5*mb+10)),
	})
	assert.ErrorIs(t, err, e.ErrFileTooLarge)
	assert.LessOrEqual(t, puts.Load(), int32(1))
	assert.Equal(t, int32(1), deletes.Load())
}

func TestCountingReaderRefusesRewindAfterLimit(t *testing.T) {
	c := &countingReader{r: strings.NewReader("abcdef"), limit: 3}
	_, err := io.ReadAll(c)
	assert.ErrorIs(t, err, e.ErrFileTooLarge)

	_, err = c.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, e.ErrFileTooLarge)
}

func TestProxyStoreFailure(t *testing.T) {
	store := new(MockStore)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(blob.Object{}, errors.New("bucket unavailable"))

	p := NewProxy(store, zaptest.NewLogger(t))
	_, err := p.Upload(context.Background(), Request{
		Context: ContextAttachment, Filename: "a.bin", ContentType: "application/octet-stream", Size: 1,
		Body: strings.NewReader("x"),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, e.ErrFileTooLarge)
}

func TestPolicyOverride(t *testing.T) {
	p := NewProxy(new(MockStore), zaptest.NewLogger(t), WithPolicies(map[Context]Policy{
		ContextResume: {MaxBytes: 2 * mb, Accept: []string{TypePDF}, Folder: "cv", KeyStyle: KeyUserScoped},
	}))

	pol := p.Policy(ContextResume)
	assert.Equal(t, ContextResume, pol.Context)
	assert.Equal(t, int64(2*mb), pol.MaxBytes)
	assert.Equal(t, int64(5*mb), p.Policy("unknown").MaxBytes, "unknown contexts use the generic policy")
	assert.Len(t, p.Policies(), 4)
}
