// Package snapshot persists the CRM state as a single versioned JSON document
// on disk and watches it for changes made by other writers.
package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// FileName is the name of the snapshot document inside the data directory.
const FileName = "crm-database.json"

// Version is written into every saved document.
const Version = 1

//go:embed schema.json
var schemaJSON []byte

var schema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Document is the on-disk envelope.
type Document struct {
	State   *models.Snapshot `json:"state"`
	Version int              `json:"version"`
}

// Validate checks raw against the snapshot schema.
func Validate(raw []byte) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("failed to compile snapshot schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to validate snapshot: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
}

// Decode validates and parses a snapshot document.
func Decode(raw []byte) (*Document, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if doc.Version > Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}
	if doc.State == nil {
		doc.State = &models.Snapshot{}
	}
	return &doc, nil
}

// Encode renders a snapshot as a document of the current version.
func Encode(snap *models.Snapshot) ([]byte, error) {
	return json.MarshalIndent(Document{State: snap, Version: Version}, "", "  ")
}

// FilePersister stores snapshots in one JSON file. Saves are atomic: the
// document is written to a temporary file and renamed over the target.
type FilePersister struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	lastHash [sha256.Size]byte
}

// NewFilePersister returns a persister writing dir/crm-database.json. The
// directory is created if needed.
func NewFilePersister(dir string, logger *zap.Logger) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FilePersister{
		path:   filepath.Join(dir, FileName),
		logger: logger.Named("snapshot"),
	}, nil
}

// Path returns the snapshot file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the snapshot file. A missing or empty file yields nil.
func (p *FilePersister) Load(_ context.Context) (*models.Snapshot, error) {
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		p.logger.Info("No snapshot found, starting fresh", zap.String("path", p.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	doc, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.lastHash = sha256.Sum256(raw)
	p.mu.Unlock()

	p.logger.Debug("Snapshot loaded",
		zap.String("path", p.path),
		zap.Int("version", doc.Version),
	)
	return doc.State, nil
}

// Save writes the snapshot atomically.
func (p *FilePersister) Save(_ context.Context, snap *models.Snapshot) error {
	raw, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".crm-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	p.lastHash = sha256.Sum256(raw)
	return nil
}

// changedExternally reports whether the file content differs from what this
// persister last read or wrote.
func (p *FilePersister) changedExternally() bool {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return sha256.Sum256(raw) != p.lastHash
}
