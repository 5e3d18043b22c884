// Package models defines the core domain records of the staffing CRM:
// vendors and their contacts, resources (candidates), job requirements,
// recruiting process flows, file categories and file records.
package models

import (
	"encoding/json"
	"time"

	"github.com/gartstein/staffing/internal/crm/pipeline"
)

// EntityType names the kind of record a file can be attached to.
type EntityType string

const (
	EntityVendor   EntityType = "vendor"
	EntityResource EntityType = "resource"
	EntityJob      EntityType = "job"
	EntityProcess  EntityType = "process"
	EntityOther    EntityType = "other"
)

// Valid reports whether t is a known owner type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityVendor, EntityResource, EntityJob, EntityProcess, EntityOther:
		return true
	}
	return false
}

// VendorStatus is the lifecycle state of a vendor.
type VendorStatus string

const (
	VendorActive   VendorStatus = "active"
	VendorInactive VendorStatus = "inactive"
)

// Vendor is a staffing partner together with its embedded contacts.
type Vendor struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Company  string          `json:"company"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	Website  string          `json:"website,omitempty"`
	Address  string          `json:"address,omitempty"`
	Contacts []VendorContact `json:"contacts"`
	Status   VendorStatus    `json:"status"`
	Category string          `json:"category,omitempty"`
	Notes    string          `json:"notes,omitempty"`
	// CreatedAt records when the vendor was added.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt records the last mutation.
	UpdatedAt time.Time `json:"updatedAt"`
}

// VendorContact is a person at a vendor. Contacts are owned by their vendor.
type VendorContact struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	Designation       string     `json:"designation"`
	Department        string     `json:"department,omitempty"`
	IsMainContact     bool       `json:"isMainContact,omitempty"`
	LastContactedDate *time.Time `json:"lastContactedDate,omitempty"`
}

// MainContacts counts the contacts flagged as main contact.
func (v *Vendor) MainContacts() int {
	n := 0
	for _, c := range v.Contacts {
		if c.IsMainContact {
			n++
		}
	}
	return n
}

// ResourceType describes where a resource was sourced from.
type ResourceType string

const (
	ResourceInHouse          ResourceType = "InHouse"
	ResourceInHouseFriends   ResourceType = "InHouse-Friends"
	ResourceExternalLinkedIn ResourceType = "External-LinkedIn"
	ResourceExternalEmail    ResourceType = "External-Email"
)

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceInHouse, ResourceInHouseFriends, ResourceExternalLinkedIn, ResourceExternalEmail:
		return true
	}
	return false
}

// External reports whether the resource was sourced outside the company.
func (t ResourceType) External() bool {
	return t == ResourceExternalLinkedIn || t == ResourceExternalEmail
}

// ResourceStatus is the availability of a resource.
type ResourceStatus string

const (
	ResourceAvailable ResourceStatus = "available"
	ResourceBusy      ResourceStatus = "busy"
	ResourceInactive  ResourceStatus = "inactive"
)

// Valid reports whether s is a known resource status.
func (s ResourceStatus) Valid() bool {
	switch s {
	case ResourceAvailable, ResourceBusy, ResourceInactive:
		return true
	}
	return false
}

// SkillLevel grades a single skill.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillExpert       SkillLevel = "expert"
)

// Skill is a graded skill of a resource.
type Skill struct {
	Name  string     `json:"name"`
	Level SkillLevel `json:"level"`
}

// Resource is a candidate that can be placed on job requirements.
type Resource struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Email              string         `json:"email"`
	Phone              string         `json:"phone"`
	TechStack          []string       `json:"techStack"`
	Experience         int            `json:"experience"`
	Type               ResourceType   `json:"type"`
	Status             ResourceStatus `json:"status"`
	HourlyRate         *float64       `json:"hourlyRate,omitempty"`
	Location           string         `json:"location,omitempty"`
	RemoteAvailability *bool          `json:"remoteAvailability,omitempty"`
	StartDate          *time.Time     `json:"startDate,omitempty"`
	Skills             []Skill        `json:"skills,omitempty"`
	Certifications     []string       `json:"certifications,omitempty"`
	// Resume is the uploaded resume, if any.
	Resume    *FileMetadata `json:"resume,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// UnmarshalJSON accepts both the canonical resume field and the two legacy
// shapes (a bare resumeFile name or a resumeMetadata record).
func (r *Resource) UnmarshalJSON(data []byte) error {
	type plain Resource
	aux := struct {
		*plain
		ResumeFile     string        `json:"resumeFile,omitempty"`
		ResumeMetadata *FileMetadata `json:"resumeMetadata,omitempty"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.Resume == nil {
		switch {
		case aux.ResumeMetadata != nil:
			r.Resume = aux.ResumeMetadata
		case aux.ResumeFile != "":
			r.Resume = &FileMetadata{Filename: aux.ResumeFile}
		}
	}
	return nil
}

// Priority ranks a job requirement.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// JobStatus is the fill state of a job requirement.
type JobStatus string

const (
	JobOpen       JobStatus = "open"
	JobInProgress JobStatus = "in-progress"
	JobFilled     JobStatus = "filled"
	JobCancelled  JobStatus = "cancelled"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobOpen, JobInProgress, JobFilled, JobCancelled:
		return true
	}
	return false
}

// JobRequirement is an open position with free-text client details.
type JobRequirement struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	TechStack       []string   `json:"techStack"`
	Experience      int        `json:"experience"`
	Location        string     `json:"location,omitempty"`
	RemoteAvailable *bool      `json:"remoteAvailable,omitempty"`
	Budget          *float64   `json:"budget,omitempty"`
	Duration        string     `json:"duration,omitempty"`
	Priority        Priority   `json:"priority"`
	Status          JobStatus  `json:"status"`
	ClientName      string     `json:"clientName,omitempty"`
	ContactPerson   string     `json:"contactPerson,omitempty"`
	ContactEmail    string     `json:"contactEmail,omitempty"`
	ContactPhone    string     `json:"contactPhone,omitempty"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	Requirements    []string   `json:"requirements,omitempty"`
	Benefits        []string   `json:"benefits,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// StatusChange is one persisted entry of a process flow's status log.
type StatusChange struct {
	Status pipeline.Status `json:"status"`
	At     time.Time       `json:"at"`
	By     string          `json:"by,omitempty"`
	Note   string          `json:"note,omitempty"`
}

// ProcessFlow is the pipeline state of one resource against one job.
type ProcessFlow struct {
	ID            string          `json:"id"`
	JobID         string          `json:"jobId"`
	ResourceID    string          `json:"resourceId"`
	Status        pipeline.Status `json:"status"`
	ScheduledDate *time.Time      `json:"scheduledDate,omitempty"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	UpdatedBy     string          `json:"updatedBy,omitempty"`
	// History is append-only, oldest first.
	History []StatusChange `json:"history,omitempty"`
}

// FileCategory groups files. Categories form a tree through ParentID.
type FileCategory struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parentId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FileRecord is a stored file registered in the CRM.
type FileRecord struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	OriginalFilename string     `json:"originalFilename"`
	Description      string     `json:"description,omitempty"`
	CategoryID       string     `json:"categoryId,omitempty"`
	Size             int64      `json:"size"`
	ContentType      string     `json:"contentType"`
	Pathname         string     `json:"pathname"`
	URL              string     `json:"url"`
	EntityType       EntityType `json:"entityType,omitempty"`
	EntityID         string     `json:"entityId,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	UploadedBy       string     `json:"uploadedBy"`
	UploadedAt       time.Time  `json:"uploadedAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// FileMetadata describes an object after a successful upload, before it is
// linked to any record.
type FileMetadata struct {
	URL         string    `json:"url"`
	Pathname    string    `json:"pathname"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
	Filename    string    `json:"filename"`
}

// Snapshot is the full persisted state of the CRM.
type Snapshot struct {
	Vendors         []Vendor         `json:"vendors"`
	Resources       []Resource       `json:"resources"`
	JobRequirements []JobRequirement `json:"jobRequirements"`
	ProcessFlows    []ProcessFlow    `json:"processFlows"`
	TechStackSkills []string         `json:"techStackSkills"`
	FileCategories  []FileCategory   `json:"fileCategories"`
	Files           []FileRecord     `json:"files"`
}

// Clone returns a copy whose collections can be modified without touching s.
// Records are copied by value; nested slices are shared and must be
// replaced, not modified in place.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		Vendors:         cloneSlice(s.Vendors),
		Resources:       cloneSlice(s.Resources),
		JobRequirements: cloneSlice(s.JobRequirements),
		ProcessFlows:    cloneSlice(s.ProcessFlows),
		TechStackSkills: cloneSlice(s.TechStackSkills),
		FileCategories:  cloneSlice(s.FileCategories),
		Files:           cloneSlice(s.Files),
	}
}

// cloneSlice copies items, keeping nil and empty distinct.
func cloneSlice[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
