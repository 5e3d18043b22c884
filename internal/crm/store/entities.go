package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
)

// Vendors

// AddVendor stores a new vendor. The id and timestamps of v are ignored and
// assigned here; contacts without an id get one.
func (s *Store) AddVendor(ctx context.Context, v models.Vendor) (models.Vendor, error) {
	if v.MainContacts() > 1 {
		return models.Vendor{}, fmt.Errorf("%w: more than one main contact", e.ErrInvalidInput)
	}
	now := s.now()
	v.ID = s.newID()
	v.Contacts = s.withContactIDs(v.Contacts)
	v.CreatedAt = now
	v.UpdatedAt = now
	return v, insert(ctx, s, vendorsC, v)
}

// UpdateVendor overlays u on the vendor with the given id.
func (s *Store) UpdateVendor(ctx context.Context, id string, u models.VendorUpdate) (models.Vendor, error) {
	return modify(ctx, s, vendorsC, id, func(v *models.Vendor) error {
		u.Apply(v)
		if v.MainContacts() > 1 {
			return fmt.Errorf("%w: more than one main contact", e.ErrInvalidInput)
		}
		v.Contacts = s.withContactIDs(v.Contacts)
		v.UpdatedAt = s.tick(v.UpdatedAt)
		return nil
	})
}

// SetMainContact flags contactID as the only main contact of the vendor.
func (s *Store) SetMainContact(ctx context.Context, vendorID, contactID string) (models.Vendor, error) {
	return modify(ctx, s, vendorsC, vendorID, func(v *models.Vendor) error {
		contacts := append([]models.VendorContact(nil), v.Contacts...)
		found := false
		for i := range contacts {
			contacts[i].IsMainContact = contacts[i].ID == contactID
			found = found || contacts[i].IsMainContact
		}
		if !found {
			return fmt.Errorf("%w: contact %s", e.ErrNotFound, contactID)
		}
		v.Contacts = contacts
		v.UpdatedAt = s.tick(v.UpdatedAt)
		return nil
	})
}

// DeleteVendor removes a vendor. Nothing referencing it is touched.
func (s *Store) DeleteVendor(ctx context.Context, id string) error {
	return remove(ctx, s, vendorsC, id)
}

// GetVendor returns one vendor.
func (s *Store) GetVendor(id string) (models.Vendor, error) {
	return get(s, vendorsC, id)
}

// ListVendors returns every vendor in insertion order.
func (s *Store) ListVendors() []models.Vendor {
	return list(s, vendorsC)
}

func (s *Store) withContactIDs(contacts []models.VendorContact) []models.VendorContact {
	out := make([]models.VendorContact, len(contacts))
	copy(out, contacts)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = s.newID()
		}
	}
	return out
}

// Resources

// AddResource stores a new resource.
func (s *Store) AddResource(ctx context.Context, r models.Resource) (models.Resource, error) {
	now := s.now()
	r.ID = s.newID()
	r.CreatedAt = now
	r.UpdatedAt = now
	return r, insert(ctx, s, resourcesC, r)
}

// UpdateResource overlays u on the resource with the given id.
func (s *Store) UpdateResource(ctx context.Context, id string, u models.ResourceUpdate) (models.Resource, error) {
	return modify(ctx, s, resourcesC, id, func(r *models.Resource) error {
		u.Apply(r)
		r.UpdatedAt = s.tick(r.UpdatedAt)
		return nil
	})
}

// DeleteResource removes a resource. Its process flows are left in place.
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	return remove(ctx, s, resourcesC, id)
}

// GetResource returns one resource.
func (s *Store) GetResource(id string) (models.Resource, error) {
	return get(s, resourcesC, id)
}

// ListResources returns every resource.
func (s *Store) ListResources() []models.Resource {
	return list(s, resourcesC)
}

// Job requirements

// AddJobRequirement stores a new job requirement.
func (s *Store) AddJobRequirement(ctx context.Context, j models.JobRequirement) (models.JobRequirement, error) {
	now := s.now()
	j.ID = s.newID()
	j.CreatedAt = now
	j.UpdatedAt = now
	return j, insert(ctx, s, jobsC, j)
}

// UpdateJobRequirement overlays u on the job with the given id.
func (s *Store) UpdateJobRequirement(ctx context.Context, id string, u models.JobRequirementUpdate) (models.JobRequirement, error) {
	return modify(ctx, s, jobsC, id, func(j *models.JobRequirement) error {
		u.Apply(j)
		j.UpdatedAt = s.tick(j.UpdatedAt)
		return nil
	})
}

// DeleteJobRequirement removes a job requirement.
func (s *Store) DeleteJobRequirement(ctx context.Context, id string) error {
	return remove(ctx, s, jobsC, id)
}

// GetJobRequirement returns one job requirement.
func (s *Store) GetJobRequirement(id string) (models.JobRequirement, error) {
	return get(s, jobsC, id)
}

// ListJobRequirements returns every job requirement.
func (s *Store) ListJobRequirements() []models.JobRequirement {
	return list(s, jobsC)
}

// Process flows

// AddProcessFlow stores a new process flow and opens its status log.
func (s *Store) AddProcessFlow(ctx context.Context, f models.ProcessFlow) (models.ProcessFlow, error) {
	now := s.now()
	f.ID = s.newID()
	f.CreatedAt = now
	f.UpdatedAt = now
	f.History = []models.StatusChange{{Status: f.Status, At: now, By: f.UpdatedBy, Note: f.Notes}}
	return f, insert(ctx, s, flowsC, f)
}

// UpdateProcessFlow overlays u on the flow with the given id. A status change
// is appended to the flow's history; with strict transitions enabled a move
// outside the pipeline graph fails with ErrInvalidTransition.
func (s *Store) UpdateProcessFlow(ctx context.Context, id string, u models.ProcessFlowUpdate) (models.ProcessFlow, error) {
	return modify(ctx, s, flowsC, id, func(f *models.ProcessFlow) error {
		from := f.Status
		u.Apply(f)
		if s.strict && !pipeline.CanTransition(from, f.Status) {
			return fmt.Errorf("%w: %s -> %s", e.ErrInvalidTransition, from, f.Status)
		}
		f.UpdatedAt = s.tick(f.UpdatedAt)
		if f.Status != from {
			note := ""
			if u.Notes != nil {
				note = *u.Notes
			}
			f.History = append(slices.Clip(f.History), models.StatusChange{
				Status: f.Status,
				At:     f.UpdatedAt,
				By:     f.UpdatedBy,
				Note:   note,
			})
		}
		return nil
	})
}

// DeleteProcessFlow removes a process flow.
func (s *Store) DeleteProcessFlow(ctx context.Context, id string) error {
	return remove(ctx, s, flowsC, id)
}

// GetProcessFlow returns one process flow.
func (s *Store) GetProcessFlow(id string) (models.ProcessFlow, error) {
	return get(s, flowsC, id)
}

// ListProcessFlows returns every process flow.
func (s *Store) ListProcessFlows() []models.ProcessFlow {
	return list(s, flowsC)
}

// ProcessFlowHistory returns the recorded status log of a flow, newest
// first. Flows restored from snapshots without a log get the synthesized
// timeline instead.
func (s *Store) ProcessFlowHistory(id string) ([]pipeline.HistoryEntry, error) {
	f, err := s.GetProcessFlow(id)
	if err != nil {
		return nil, err
	}
	if len(f.History) == 0 {
		return pipeline.SynthesizeHistory(f.Status, f.UpdatedAt, f.Notes, f.UpdatedBy), nil
	}

	out := make([]pipeline.HistoryEntry, 0, len(f.History))
	for i := len(f.History) - 1; i >= 0; i-- {
		h := f.History[i]
		by := h.By
		if by == "" {
			by = "system"
		}
		out = append(out, pipeline.HistoryEntry{
			Status:    h.Status,
			Timestamp: h.At,
			Notes:     h.Note,
			UpdatedBy: by,
		})
	}
	return out, nil
}

// Skills

// AddTechStackSkill adds a skill to the vocabulary unless it is already there.
func (s *Store) AddTechStackSkill(ctx context.Context, skill string) error {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return fmt.Errorf("%w: empty skill", e.ErrInvalidInput)
	}
	return s.mutate(ctx, func(next *models.Snapshot) (Change, error) {
		if slices.Contains(next.TechStackSkills, skill) {
			return Change{}, nil
		}
		next.TechStackSkills = append(next.TechStackSkills, skill)
		return Change{Kind: Created, Entity: EntitySkill, ID: skill}, nil
	})
}

// ListTechStackSkills returns the skill vocabulary.
func (s *Store) ListTechStackSkills() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.data.TechStackSkills...)
}

// File categories

// AddFileCategory stores a new category.
func (s *Store) AddFileCategory(ctx context.Context, c models.FileCategory) (models.FileCategory, error) {
	now := s.now()
	c.ID = s.newID()
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, insert(ctx, s, categoriesC, c)
}

// UpdateFileCategory overlays u on the category with the given id.
func (s *Store) UpdateFileCategory(ctx context.Context, id string, u models.FileCategoryUpdate) (models.FileCategory, error) {
	return modify(ctx, s, categoriesC, id, func(c *models.FileCategory) error {
		u.Apply(c)
		c.UpdatedAt = s.tick(c.UpdatedAt)
		return nil
	})
}

// DeleteFileCategory removes a category even if files still point at it.
func (s *Store) DeleteFileCategory(ctx context.Context, id string) error {
	return remove(ctx, s, categoriesC, id)
}

// GetFileCategory returns one category.
func (s *Store) GetFileCategory(id string) (models.FileCategory, error) {
	return get(s, categoriesC, id)
}

// ListFileCategories returns every category.
func (s *Store) ListFileCategories() []models.FileCategory {
	return list(s, categoriesC)
}

// Files

// AddFile registers an uploaded file. UploadedAt defaults to now.
func (s *Store) AddFile(ctx context.Context, f models.FileRecord) (models.FileRecord, error) {
	now := s.now()
	f.ID = s.newID()
	if f.UploadedAt.IsZero() {
		f.UploadedAt = now
	}
	f.UpdatedAt = now
	return f, insert(ctx, s, filesC, f)
}

// UpdateFile overlays u on the file with the given id.
func (s *Store) UpdateFile(ctx context.Context, id string, u models.FileRecordUpdate) (models.FileRecord, error) {
	return modify(ctx, s, filesC, id, func(f *models.FileRecord) error {
		u.Apply(f)
		f.UpdatedAt = s.tick(f.UpdatedAt)
		return nil
	})
}

// DeleteFile removes a file row. The stored object is not touched.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	return remove(ctx, s, filesC, id)
}

// GetFile returns one file row.
func (s *Store) GetFile(id string) (models.FileRecord, error) {
	return get(s, filesC, id)
}

// ListFiles returns every file row.
func (s *Store) ListFiles() []models.FileRecord {
	return list(s, filesC)
}

// FilesByEntity returns the files attached to one record.
func (s *Store) FilesByEntity(entityType models.EntityType, entityID string) []models.FileRecord {
	out := []models.FileRecord{}
	for _, f := range s.ListFiles() {
		if f.EntityType == entityType && f.EntityID == entityID {
			out = append(out, f)
		}
	}
	return out
}

// FilesByCategory returns the files in one category.
func (s *Store) FilesByCategory(categoryID string) []models.FileRecord {
	out := []models.FileRecord{}
	for _, f := range s.ListFiles() {
		if f.CategoryID == categoryID {
			out = append(out, f)
		}
	}
	return out
}
