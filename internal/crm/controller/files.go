package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/events"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/search"
	"github.com/gartstein/staffing/internal/crm/upload"
	"go.uber.org/zap"
)

// File categories

func (s *CRMService) checkParent(id, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == id {
		return fmt.Errorf("%w: a category cannot be its own parent", e.ErrInvalidInput)
	}
	parents := map[string]string{}
	found := false
	for _, c := range s.repo.ListFileCategories() {
		parents[c.ID] = c.ParentID
		found = found || c.ID == parentID
	}
	if !found {
		return fmt.Errorf("%w: parent category %s does not exist", e.ErrReferenceViolation, parentID)
	}
	if id == "" {
		return nil
	}
	// walking up from the new parent must not reach id
	seen := map[string]bool{}
	for cur := parentID; cur != "" && !seen[cur]; cur = parents[cur] {
		if cur == id {
			return fmt.Errorf("%w: category %s would become its own ancestor", e.ErrInvalidInput, id)
		}
		seen[cur] = true
	}
	return nil
}

// CreateFileCategory validates and stores a category.
func (s *CRMService) CreateFileCategory(ctx context.Context, c models.FileCategory) (models.FileCategory, error) {
	if err := required("name", c.Name); err != nil {
		return models.FileCategory{}, err
	}
	if err := s.checkParent("", c.ParentID); err != nil {
		return models.FileCategory{}, err
	}
	created, err := s.repo.AddFileCategory(ctx, c)
	if err != nil {
		return models.FileCategory{}, fmt.Errorf("failed to create file category: %w", err)
	}
	s.producer.Produce(events.CategoryCreated, created.ID, created)
	return created, nil
}

func (s *CRMService) UpdateFileCategory(ctx context.Context, id string, u models.FileCategoryUpdate) (models.FileCategory, error) {
	current, err := s.repo.GetFileCategory(id)
	if err != nil {
		return models.FileCategory{}, err
	}
	u.Apply(&current)
	if err := required("name", current.Name); err != nil {
		return models.FileCategory{}, err
	}
	if u.ParentID != nil {
		if err := s.checkParent(id, *u.ParentID); err != nil {
			return models.FileCategory{}, err
		}
	}

	updated, err := s.repo.UpdateFileCategory(ctx, id, u)
	if err != nil {
		return models.FileCategory{}, wrap("update file category", err)
	}
	s.producer.Produce(events.CategoryUpdated, id, updated)
	return updated, nil
}

// DeleteFileCategory removes an empty category. A category that still holds
// files or sub-categories is refused with ErrReferenceViolation.
func (s *CRMService) DeleteFileCategory(ctx context.Context, id string) error {
	if _, err := s.repo.GetFileCategory(id); err != nil {
		return err
	}
	if n := len(s.repo.FilesByCategory(id)); n > 0 {
		return fmt.Errorf("%w: category %s still holds %d files", e.ErrReferenceViolation, id, n)
	}
	for _, c := range s.repo.ListFileCategories() {
		if c.ParentID == id {
			return fmt.Errorf("%w: category %s has sub-category %s", e.ErrReferenceViolation, id, c.ID)
		}
	}
	if err := s.repo.DeleteFileCategory(ctx, id); err != nil {
		return wrap("delete file category", err)
	}
	s.producer.Produce(events.CategoryDeleted, id, nil)
	return nil
}

func (s *CRMService) GetFileCategory(id string) (models.FileCategory, error) {
	return s.repo.GetFileCategory(id)
}

func (s *CRMService) ListFileCategories() []models.FileCategory {
	return s.repo.ListFileCategories()
}

// Files

// FileDetails is the record data supplied with an upload.
type FileDetails struct {
	Name        string
	Description string
	CategoryID  string
	EntityType  models.EntityType
	EntityID    string
	Tags        []string
}

// checkOwner makes sure a file's category and owner record exist.
func (s *CRMService) checkOwner(categoryID string, entityType models.EntityType, entityID string) error {
	if categoryID != "" {
		if _, err := s.repo.GetFileCategory(categoryID); err != nil {
			return refErr("file category", categoryID, err)
		}
	}
	if entityType == "" {
		if entityID != "" {
			return fmt.Errorf("%w: entityId given without entityType", e.ErrInvalidInput)
		}
		return nil
	}
	if !entityType.Valid() {
		return fmt.Errorf("%w: unknown entity type %q", e.ErrInvalidInput, entityType)
	}
	if entityID == "" {
		return nil
	}

	var err error
	switch entityType {
	case models.EntityVendor:
		_, err = s.repo.GetVendor(entityID)
	case models.EntityResource:
		_, err = s.repo.GetResource(entityID)
	case models.EntityJob:
		_, err = s.repo.GetJobRequirement(entityID)
	case models.EntityProcess:
		_, err = s.repo.GetProcessFlow(entityID)
	}
	if err != nil {
		return refErr(string(entityType), entityID, err)
	}
	return nil
}

func refErr(kind, id string, err error) error {
	if errors.Is(err, e.ErrNotFound) {
		return fmt.Errorf("%w: %s %s does not exist", e.ErrReferenceViolation, kind, id)
	}
	return err
}

// discard removes an uploaded object whose record could not be written.
// ctx may already be cancelled, so the removal runs on a detached context.
func (s *CRMService) discard(ctx context.Context, pathname string, cause error) {
	if err := s.files.Delete(context.WithoutCancel(ctx), pathname); err != nil && !errors.Is(err, e.ErrNotFound) {
		s.logger.Error("Failed to remove orphaned object",
			zap.String("pathname", pathname),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("Removed object after failed registration",
		zap.String("pathname", pathname),
		zap.Error(cause),
	)
}

// StoreFile uploads a file without registering it. It backs the raw upload
// endpoint; req.Context defaults to the endpoint policy.
func (s *CRMService) StoreFile(ctx context.Context, req upload.Request) (models.FileMetadata, error) {
	if req.Context == "" {
		req.Context = upload.ContextEndpoint
	}
	return s.files.Upload(ctx, req)
}

// UploadFile stores a file and registers it. If the record cannot be
// written the stored object is removed again.
func (s *CRMService) UploadFile(ctx context.Context, req upload.Request, d FileDetails) (models.FileRecord, error) {
	if err := s.checkOwner(d.CategoryID, d.EntityType, d.EntityID); err != nil {
		return models.FileRecord{}, err
	}
	if req.Context == "" {
		req.Context = upload.ContextAttachment
	}
	if req.Folder == "" && s.files.Policy(req.Context).Folder == "" {
		req.Folder = upload.FolderFor(d.EntityType)
	}

	meta, err := s.files.Upload(ctx, req)
	if err != nil {
		return models.FileRecord{}, err
	}

	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = meta.Filename
	}
	uploadedBy := req.UserID
	if uploadedBy == "" {
		uploadedBy = "system"
	}
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	record, err := s.repo.AddFile(ctx, models.FileRecord{
		Name:             name,
		OriginalFilename: meta.Filename,
		Description:      d.Description,
		CategoryID:       d.CategoryID,
		Size:             meta.Size,
		ContentType:      meta.ContentType,
		Pathname:         meta.Pathname,
		URL:              meta.URL,
		EntityType:       d.EntityType,
		EntityID:         d.EntityID,
		Tags:             tags,
		UploadedBy:       uploadedBy,
		UploadedAt:       meta.UploadedAt,
	})
	if err != nil {
		s.discard(ctx, meta.Pathname, err)
		return models.FileRecord{}, fmt.Errorf("failed to register file: %w", err)
	}

	s.producer.Produce(events.FileUploaded, record.ID, record)
	return record, nil
}

// UploadResume stores a resume and links it to the resource. A previous
// resume object is removed once the new one is linked.
func (s *CRMService) UploadResume(ctx context.Context, resourceID string, req upload.Request) (models.Resource, error) {
	current, err := s.repo.GetResource(resourceID)
	if err != nil {
		return models.Resource{}, err
	}
	req.Context = upload.ContextResume

	meta, err := s.files.Upload(ctx, req)
	if err != nil {
		return models.Resource{}, err
	}
	updated, err := s.repo.UpdateResource(ctx, resourceID, models.ResourceUpdate{Resume: &meta})
	if err != nil {
		s.discard(ctx, meta.Pathname, err)
		return models.Resource{}, wrap("link resume", err)
	}

	if old := current.Resume; old != nil && old.Pathname != "" && old.Pathname != meta.Pathname {
		if err := s.files.Delete(ctx, old.Pathname); err != nil && !errors.Is(err, e.ErrNotFound) {
			s.logger.Warn("Failed to remove replaced resume",
				zap.String("resource_id", resourceID),
				zap.String("pathname", old.Pathname),
				zap.Error(err),
			)
		}
	}
	s.producer.Produce(events.ResourceUpdated, resourceID, updated)
	return updated, nil
}

// UpdateFile patches a file's descriptive fields.
func (s *CRMService) UpdateFile(ctx context.Context, id string, u models.FileRecordUpdate) (models.FileRecord, error) {
	current, err := s.repo.GetFile(id)
	if err != nil {
		return models.FileRecord{}, err
	}
	u.Apply(&current)
	if err := required("name", current.Name); err != nil {
		return models.FileRecord{}, err
	}
	if err := s.checkOwner(current.CategoryID, current.EntityType, current.EntityID); err != nil {
		return models.FileRecord{}, err
	}

	updated, err := s.repo.UpdateFile(ctx, id, u)
	if err != nil {
		return models.FileRecord{}, wrap("update file", err)
	}
	s.producer.Produce(events.FileUpdated, id, updated)
	return updated, nil
}

// DeleteFile removes the stored object and then the record. An object that
// is already gone does not block removing the record.
func (s *CRMService) DeleteFile(ctx context.Context, id string) error {
	f, err := s.repo.GetFile(id)
	if err != nil {
		return err
	}
	if f.Pathname != "" {
		if err := s.files.Delete(ctx, f.Pathname); err != nil {
			if !errors.Is(err, e.ErrNotFound) {
				return wrap("delete stored object", err)
			}
			s.logger.Warn("Stored object already missing",
				zap.String("file_id", id),
				zap.String("pathname", f.Pathname),
			)
		}
	}
	if err := s.repo.DeleteFile(ctx, id); err != nil {
		return wrap("delete file", err)
	}
	s.producer.Produce(events.FileDeleted, id, nil)
	return nil
}

func (s *CRMService) GetFile(id string) (models.FileRecord, error) {
	return s.repo.GetFile(id)
}

// FileQuery filters the file list. Empty fields match everything.
type FileQuery struct {
	Text       string
	Pattern    string
	CategoryID string
	EntityType models.EntityType
	EntityID   string
}

// ListFiles returns the files matching q.
func (s *CRMService) ListFiles(q FileQuery, opts ListOptions) ([]models.FileRecord, error) {
	var files []models.FileRecord
	switch {
	case q.EntityType != "" && q.EntityID != "":
		files = s.repo.FilesByEntity(q.EntityType, q.EntityID)
	case q.CategoryID != "":
		files = s.repo.FilesByCategory(q.CategoryID)
	default:
		files = s.repo.ListFiles()
	}
	if q.CategoryID != "" && q.EntityID != "" {
		kept := files[:0:0]
		for _, f := range files {
			if f.CategoryID == q.CategoryID {
				kept = append(kept, f)
			}
		}
		files = kept
	}
	if text, ok := search.Normalize(q.Text); ok {
		files = search.Files(files, text)
	}
	if q.Pattern != "" {
		var err error
		if files, err = search.FilesByPattern(files, q.Pattern); err != nil {
			return nil, fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
		}
	}
	return sorted(files, search.FileFields, opts)
}

// Policies returns the active upload policy of every context.
func (s *CRMService) Policies() map[upload.Context]upload.Policy {
	out := map[upload.Context]upload.Policy{}
	for _, c := range []upload.Context{upload.ContextGeneric, upload.ContextResume, upload.ContextEndpoint, upload.ContextAttachment} {
		out[c] = s.files.Policy(c)
	}
	return out
}
