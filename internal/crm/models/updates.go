package models

import (
	"time"

	"github.com/gartstein/staffing/internal/crm/pipeline"
)

// Update types carry partial changes. A nil field is left untouched; slices
// are replaced as a whole.

// VendorUpdate is a partial change to a Vendor.
type VendorUpdate struct {
	Name     *string          `json:"name,omitempty"`
	Company  *string          `json:"company,omitempty"`
	Email    *string          `json:"email,omitempty"`
	Phone    *string          `json:"phone,omitempty"`
	Website  *string          `json:"website,omitempty"`
	Address  *string          `json:"address,omitempty"`
	Contacts *[]VendorContact `json:"contacts,omitempty"`
	Status   *VendorStatus    `json:"status,omitempty"`
	Category *string          `json:"category,omitempty"`
	Notes    *string          `json:"notes,omitempty"`
}

// Apply overlays u onto v.
func (u *VendorUpdate) Apply(v *Vendor) {
	setIf(&v.Name, u.Name)
	setIf(&v.Company, u.Company)
	setIf(&v.Email, u.Email)
	setIf(&v.Phone, u.Phone)
	setIf(&v.Website, u.Website)
	setIf(&v.Address, u.Address)
	setIf(&v.Contacts, u.Contacts)
	setIf(&v.Status, u.Status)
	setIf(&v.Category, u.Category)
	setIf(&v.Notes, u.Notes)
}

// ResourceUpdate is a partial change to a Resource.
type ResourceUpdate struct {
	Name               *string         `json:"name,omitempty"`
	Email              *string         `json:"email,omitempty"`
	Phone              *string         `json:"phone,omitempty"`
	TechStack          *[]string       `json:"techStack,omitempty"`
	Experience         *int            `json:"experience,omitempty"`
	Type               *ResourceType   `json:"type,omitempty"`
	Status             *ResourceStatus `json:"status,omitempty"`
	HourlyRate         *float64        `json:"hourlyRate,omitempty"`
	Location           *string         `json:"location,omitempty"`
	RemoteAvailability *bool           `json:"remoteAvailability,omitempty"`
	StartDate          *time.Time      `json:"startDate,omitempty"`
	Skills             *[]Skill        `json:"skills,omitempty"`
	Certifications     *[]string       `json:"certifications,omitempty"`
	Resume             *FileMetadata   `json:"resume,omitempty"`
}

// Apply overlays u onto r.
func (u *ResourceUpdate) Apply(r *Resource) {
	setIf(&r.Name, u.Name)
	setIf(&r.Email, u.Email)
	setIf(&r.Phone, u.Phone)
	setIf(&r.TechStack, u.TechStack)
	setIf(&r.Experience, u.Experience)
	setIf(&r.Type, u.Type)
	setIf(&r.Status, u.Status)
	setPtrIf(&r.HourlyRate, u.HourlyRate)
	setIf(&r.Location, u.Location)
	setPtrIf(&r.RemoteAvailability, u.RemoteAvailability)
	setPtrIf(&r.StartDate, u.StartDate)
	setIf(&r.Skills, u.Skills)
	setIf(&r.Certifications, u.Certifications)
	setPtrIf(&r.Resume, u.Resume)
}

// JobRequirementUpdate is a partial change to a JobRequirement.
type JobRequirementUpdate struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	TechStack       *[]string  `json:"techStack,omitempty"`
	Experience      *int       `json:"experience,omitempty"`
	Location        *string    `json:"location,omitempty"`
	RemoteAvailable *bool      `json:"remoteAvailable,omitempty"`
	Budget          *float64   `json:"budget,omitempty"`
	Duration        *string    `json:"duration,omitempty"`
	Priority        *Priority  `json:"priority,omitempty"`
	Status          *JobStatus `json:"status,omitempty"`
	ClientName      *string    `json:"clientName,omitempty"`
	ContactPerson   *string    `json:"contactPerson,omitempty"`
	ContactEmail    *string    `json:"contactEmail,omitempty"`
	ContactPhone    *string    `json:"contactPhone,omitempty"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	Requirements    *[]string  `json:"requirements,omitempty"`
	Benefits        *[]string  `json:"benefits,omitempty"`
}

// Apply overlays u onto j.
func (u *JobRequirementUpdate) Apply(j *JobRequirement) {
	setIf(&j.Title, u.Title)
	setIf(&j.Description, u.Description)
	setIf(&j.TechStack, u.TechStack)
	setIf(&j.Experience, u.Experience)
	setIf(&j.Location, u.Location)
	setPtrIf(&j.RemoteAvailable, u.RemoteAvailable)
	setPtrIf(&j.Budget, u.Budget)
	setIf(&j.Duration, u.Duration)
	setIf(&j.Priority, u.Priority)
	setIf(&j.Status, u.Status)
	setIf(&j.ClientName, u.ClientName)
	setIf(&j.ContactPerson, u.ContactPerson)
	setIf(&j.ContactEmail, u.ContactEmail)
	setIf(&j.ContactPhone, u.ContactPhone)
	setPtrIf(&j.StartDate, u.StartDate)
	setPtrIf(&j.EndDate, u.EndDate)
	setIf(&j.Requirements, u.Requirements)
	setIf(&j.Benefits, u.Benefits)
}

// ProcessFlowUpdate is a partial change to a ProcessFlow. History cannot be
// patched; it grows when Status changes.
type ProcessFlowUpdate struct {
	JobID         *string          `json:"jobId,omitempty"`
	ResourceID    *string          `json:"resourceId,omitempty"`
	Status        *pipeline.Status `json:"status,omitempty"`
	ScheduledDate *time.Time       `json:"scheduledDate,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	UpdatedBy     *string          `json:"updatedBy,omitempty"`
}

// Apply overlays u onto f.
func (u *ProcessFlowUpdate) Apply(f *ProcessFlow) {
	setIf(&f.JobID, u.JobID)
	setIf(&f.ResourceID, u.ResourceID)
	setIf(&f.Status, u.Status)
	setPtrIf(&f.ScheduledDate, u.ScheduledDate)
	setIf(&f.Notes, u.Notes)
	setIf(&f.UpdatedBy, u.UpdatedBy)
}

// FileCategoryUpdate is a partial change to a FileCategory.
type FileCategoryUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ParentID    *string `json:"parentId,omitempty"`
}

// Apply overlays u onto c.
func (u *FileCategoryUpdate) Apply(c *FileCategory) {
	setIf(&c.Name, u.Name)
	setIf(&c.Description, u.Description)
	setIf(&c.ParentID, u.ParentID)
}

// FileRecordUpdate is a partial change to a FileRecord. Storage fields
// (pathname, url, size, content type) are fixed at upload time.
type FileRecordUpdate struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	CategoryID  *string     `json:"categoryId,omitempty"`
	EntityType  *EntityType `json:"entityType,omitempty"`
	EntityID    *string     `json:"entityId,omitempty"`
	Tags        *[]string   `json:"tags,omitempty"`
}

// Apply overlays u onto f.
func (u *FileRecordUpdate) Apply(f *FileRecord) {
	setIf(&f.Name, u.Name)
	setIf(&f.Description, u.Description)
	setIf(&f.CategoryID, u.CategoryID)
	setIf(&f.EntityType, u.EntityType)
	setIf(&f.EntityID, u.EntityID)
	setIf(&f.Tags, u.Tags)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setPtrIf[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
