// Package search implements the case-insensitive substring search over CRM
// collections, glob matching over file pathnames, list filters and the
// single-field sorting used by list views.
package search

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
)

// Results groups the matches of All.
type Results struct {
	Vendors   []models.Vendor         `json:"vendors"`
	Resources []models.Resource       `json:"resources"`
	Jobs      []models.JobRequirement `json:"jobs"`
}

// Total is the number of matches across all collections.
func (r Results) Total() int {
	return len(r.Vendors) + len(r.Resources) + len(r.Jobs)
}

// Normalize trims a raw query. The boolean is false when nothing is left, in
// which case callers treat the request as unfiltered and skip the scan.
func Normalize(raw string) (string, bool) {
	q := strings.TrimSpace(raw)
	return q, q != ""
}

// All returns the vendors, resources and jobs containing query in any of
// their searchable fields. The query is used as given.
func All(s *models.Snapshot, query string) Results {
	q := strings.ToLower(query)
	res := Results{
		Vendors:   []models.Vendor{},
		Resources: []models.Resource{},
		Jobs:      []models.JobRequirement{},
	}

	for _, v := range s.Vendors {
		if VendorMatches(v, q) {
			res.Vendors = append(res.Vendors, v)
		}
	}
	for _, r := range s.Resources {
		if ResourceMatches(r, q) {
			res.Resources = append(res.Resources, r)
		}
	}
	for _, j := range s.JobRequirements {
		if JobMatches(j, q) {
			res.Jobs = append(res.Jobs, j)
		}
	}
	return res
}

// VendorMatches reports whether a lower-cased query hits name, company,
// email, website or category.
func VendorMatches(v models.Vendor, q string) bool {
	return contains(v.Name, q) ||
		contains(v.Company, q) ||
		contains(v.Email, q) ||
		contains(v.Website, q) ||
		contains(v.Category, q)
}

// ResourceMatches reports whether a lower-cased query hits name, email, a
// tech stack entry, location or a certification.
func ResourceMatches(r models.Resource, q string) bool {
	return contains(r.Name, q) ||
		contains(r.Email, q) ||
		anyContains(r.TechStack, q) ||
		contains(r.Location, q) ||
		anyContains(r.Certifications, q)
}

// JobMatches reports whether a lower-cased query hits title, description, a
// tech stack entry or location.
func JobMatches(j models.JobRequirement, q string) bool {
	return contains(j.Title, q) ||
		contains(j.Description, q) ||
		anyContains(j.TechStack, q) ||
		contains(j.Location, q)
}

// Files returns the files whose name, original filename, description or a
// tag contains query.
func Files(files []models.FileRecord, query string) []models.FileRecord {
	q := strings.ToLower(query)
	out := []models.FileRecord{}
	for _, f := range files {
		if contains(f.Name, q) ||
			contains(f.OriginalFilename, q) ||
			contains(f.Description, q) ||
			anyContains(f.Tags, q) {
			out = append(out, f)
		}
	}
	return out
}

// FilesByPattern returns the files whose pathname matches a doublestar glob
// such as "resumes/**/*.pdf".
func FilesByPattern(files []models.FileRecord, pattern string) ([]models.FileRecord, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	out := []models.FileRecord{}
	for _, f := range files {
		ok, err := doublestar.Match(pattern, f.Pathname)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// ProcessFlowsByStatus keeps the flows in status; "all" or "" keeps everything.
func ProcessFlowsByStatus(flows []models.ProcessFlow, status string) []models.ProcessFlow {
	if status == "" || status == "all" {
		return flows
	}
	out := []models.ProcessFlow{}
	for _, f := range flows {
		if f.Status == pipeline.Status(status) {
			out = append(out, f)
		}
	}
	return out
}

// ResourcesBy keeps resources matching status and type; empty or "all"
// arguments do not filter.
func ResourcesBy(resources []models.Resource, status, typ string) []models.Resource {
	out := []models.Resource{}
	for _, r := range resources {
		if !wildcard(status) && string(r.Status) != status {
			continue
		}
		if !wildcard(typ) && string(r.Type) != typ {
			continue
		}
		out = append(out, r)
	}
	return out
}

// JobsBy keeps jobs matching status and priority; empty or "all" arguments
// do not filter.
func JobsBy(jobs []models.JobRequirement, status, priority string) []models.JobRequirement {
	out := []models.JobRequirement{}
	for _, j := range jobs {
		if !wildcard(status) && string(j.Status) != status {
			continue
		}
		if !wildcard(priority) && string(j.Priority) != priority {
			continue
		}
		out = append(out, j)
	}
	return out
}

func wildcard(v string) bool {
	return v == "" || v == "all"
}

func contains(field, q string) bool {
	return strings.Contains(strings.ToLower(field), q)
}

func anyContains(fields []string, q string) bool {
	for _, f := range fields {
		if contains(f, q) {
			return true
		}
	}
	return false
}
