package store

import (
	"fmt"

	"github.com/gartstein/staffing/internal/crm/models"
)

// IntegrityIssue is one dangling or circular reference found by CheckIntegrity.
type IntegrityIssue struct {
	Entity  EntityKind `json:"entity"`
	ID      string     `json:"id"`
	Field   string     `json:"field"`
	Ref     string     `json:"ref"`
	Message string     `json:"message"`
}

// CheckIntegrity walks every cross-record reference. Deletes do not cascade,
// so this is the only place dangling references surface.
func (s *Store) CheckIntegrity() []IntegrityIssue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return checkIntegrity(s.data)
}

func checkIntegrity(snap *models.Snapshot) []IntegrityIssue {
	vendors := idSet(snap.Vendors, func(v models.Vendor) string { return v.ID })
	resources := idSet(snap.Resources, func(r models.Resource) string { return r.ID })
	jobs := idSet(snap.JobRequirements, func(j models.JobRequirement) string { return j.ID })
	flows := idSet(snap.ProcessFlows, func(f models.ProcessFlow) string { return f.ID })

	parents := make(map[string]string, len(snap.FileCategories))
	for _, c := range snap.FileCategories {
		parents[c.ID] = c.ParentID
	}

	issues := []IntegrityIssue{}
	missing := func(entity EntityKind, id, field, ref string) {
		issues = append(issues, IntegrityIssue{
			Entity:  entity,
			ID:      id,
			Field:   field,
			Ref:     ref,
			Message: fmt.Sprintf("%s %s references missing %s %q", entity, id, field, ref),
		})
	}

	for _, f := range snap.ProcessFlows {
		if !jobs[f.JobID] {
			missing(EntityProcessFlow, f.ID, "jobId", f.JobID)
		}
		if !resources[f.ResourceID] {
			missing(EntityProcessFlow, f.ID, "resourceId", f.ResourceID)
		}
	}

	for _, f := range snap.Files {
		if f.CategoryID != "" {
			if _, ok := parents[f.CategoryID]; !ok {
				missing(EntityFile, f.ID, "categoryId", f.CategoryID)
			}
		}
		if f.EntityID == "" {
			continue
		}
		var owners map[string]bool
		switch f.EntityType {
		case models.EntityVendor:
			owners = vendors
		case models.EntityResource:
			owners = resources
		case models.EntityJob:
			owners = jobs
		case models.EntityProcess:
			owners = flows
		default:
			continue
		}
		if !owners[f.EntityID] {
			missing(EntityFile, f.ID, "entityId", f.EntityID)
		}
	}

	for _, c := range snap.FileCategories {
		if c.ParentID == "" {
			continue
		}
		if _, ok := parents[c.ParentID]; !ok {
			missing(EntityFileCategory, c.ID, "parentId", c.ParentID)
			continue
		}
		if inCycle(parents, c.ID) {
			issues = append(issues, IntegrityIssue{
				Entity:  EntityFileCategory,
				ID:      c.ID,
				Field:   "parentId",
				Ref:     c.ParentID,
				Message: fmt.Sprintf("file_category %s is part of a parent cycle", c.ID),
			})
		}
	}
	return issues
}

func inCycle(parents map[string]string, start string) bool {
	seen := map[string]bool{start: true}
	for cur := parents[start]; cur != ""; cur = parents[cur] {
		if cur == start {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
	return false
}

func idSet[T any](items []T, id func(T) string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[id(it)] = true
	}
	return out
}
