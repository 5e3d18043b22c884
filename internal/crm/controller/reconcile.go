package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gartstein/staffing/internal/crm/blob"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/models"
	"go.uber.org/zap"
)

// ReconcileReport compares the object store with the records pointing into it.
type ReconcileReport struct {
	Scanned int `json:"scanned"`
	// Orphans are stored objects no file record or resume refers to.
	Orphans []blob.Object `json:"orphans"`
	// Missing are file records whose object is gone.
	Missing []models.FileRecord `json:"missing"`
	Removed int                 `json:"removed"`
}

// Reconcile lists the objects under prefix, optionally narrowed by a
// doublestar pattern, and reports orphans and missing objects. With remove
// set the orphans are deleted. Records are never deleted.
func (s *CRMService) Reconcile(ctx context.Context, prefix, pattern string, remove bool) (ReconcileReport, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return ReconcileReport{}, fmt.Errorf("%w: invalid pattern %q", e.ErrInvalidInput, pattern)
	}
	match := func(pathname string) bool {
		if !strings.HasPrefix(pathname, prefix) {
			return false
		}
		if pattern == "" {
			return true
		}
		ok, _ := doublestar.Match(pattern, pathname)
		return ok
	}

	objects, err := s.files.List(ctx, prefix)
	if err != nil {
		return ReconcileReport{}, wrap("list stored objects", err)
	}

	snap := s.repo.Snapshot()
	referenced := map[string]bool{}
	for _, f := range snap.Files {
		referenced[f.Pathname] = true
	}
	for _, r := range snap.Resources {
		if r.Resume != nil && r.Resume.Pathname != "" {
			referenced[r.Resume.Pathname] = true
		}
	}

	report := ReconcileReport{Orphans: []blob.Object{}, Missing: []models.FileRecord{}}
	stored := map[string]bool{}
	for _, obj := range objects {
		if !match(obj.Pathname) {
			continue
		}
		report.Scanned++
		stored[obj.Pathname] = true
		if !referenced[obj.Pathname] {
			report.Orphans = append(report.Orphans, obj)
		}
	}
	for _, f := range snap.Files {
		if f.Pathname != "" && match(f.Pathname) && !stored[f.Pathname] {
			report.Missing = append(report.Missing, f)
		}
	}

	if remove {
		for _, obj := range report.Orphans {
			if err := s.files.Delete(ctx, obj.Pathname); err != nil && !errors.Is(err, e.ErrNotFound) {
				s.logger.Error("Failed to remove orphaned object",
					zap.String("pathname", obj.Pathname),
					zap.Error(err),
				)
				continue
			}
			report.Removed++
		}
	}

	s.logger.Info("Reconciled object store",
		zap.String("prefix", prefix),
		zap.Int("scanned", report.Scanned),
		zap.Int("orphans", len(report.Orphans)),
		zap.Int("missing", len(report.Missing)),
		zap.Int("removed", report.Removed),
	)
	return report, nil
}
