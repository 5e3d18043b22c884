// Package models contains the relational rows of the CRM mirror,
// configured to work using GORM as the ORM. List-valued fields are stored as
// JSON columns.
package models

import (
	"time"

	crm "github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"gorm.io/datatypes"
)

// Meta is the single bookkeeping row written with every mirrored snapshot.
type Meta struct {
	ID      uint `gorm:"primaryKey"`
	Version int
	SavedAt time.Time
}

func (Meta) TableName() string { return "crm_meta" }

// Vendor mirrors models.Vendor.
type Vendor struct {
	ID        string `gorm:"primaryKey;size:64"`
	Position  int    `gorm:"index"`
	Name      string `gorm:"index"`
	Company   string
	Email     string
	Phone     string
	Website   string
	Address   string
	Contacts  datatypes.JSONSlice[crm.VendorContact]
	Status    string `gorm:"size:16"`
	Category  string
	Notes     string
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

// Resource mirrors models.Resource.
type Resource struct {
	ID                 string `gorm:"primaryKey;size:64"`
	Position           int    `gorm:"index"`
	Name               string `gorm:"index"`
	Email              string
	Phone              string
	TechStack          datatypes.JSONSlice[string]
	Experience         int `gorm:"check:experience >= 0"`
	Type               string
	Status             string
	HourlyRate         *float64
	Location           string
	RemoteAvailability *bool
	StartDate          *time.Time
	Skills             datatypes.JSONSlice[crm.Skill]
	Certifications     datatypes.JSONSlice[string]
	Resume             datatypes.JSONType[*crm.FileMetadata]
	CreatedAt          time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime:false"`
}

// JobRequirement mirrors models.JobRequirement.
type JobRequirement struct {
	ID              string `gorm:"primaryKey;size:64"`
	Position        int    `gorm:"index"`
	Title           string `gorm:"index"`
	Description     string
	TechStack       datatypes.JSONSlice[string]
	Experience      int
	Location        string
	RemoteAvailable *bool
	Budget          *float64
	Duration        string
	Priority        string `gorm:"size:16"`
	Status          string `gorm:"size:16"`
	ClientName      string
	ContactPerson   string
	ContactEmail    string
	ContactPhone    string
	StartDate       *time.Time
	EndDate         *time.Time
	Requirements    datatypes.JSONSlice[string]
	Benefits        datatypes.JSONSlice[string]
	CreatedAt       time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}

// ProcessFlow mirrors models.ProcessFlow. JobID and ResourceID are plain
// columns; deletes do not cascade in the CRM.
type ProcessFlow struct {
	ID            string          `gorm:"primaryKey;size:64"`
	Position      int             `gorm:"index"`
	JobID         string          `gorm:"index;size:64"`
	ResourceID    string          `gorm:"index;size:64"`
	Status        pipeline.Status `gorm:"size:32;index"`
	ScheduledDate *time.Time      `gorm:"index"`
	Notes         string
	UpdatedBy     string
	History       datatypes.JSONSlice[crm.StatusChange]
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

// Skill is one entry of the tech stack vocabulary.
type Skill struct {
	Name     string `gorm:"primaryKey;size:128"`
	Position int    `gorm:"index"`
}

// FileCategory mirrors models.FileCategory.
type FileCategory struct {
	ID          string `gorm:"primaryKey;size:64"`
	Position    int    `gorm:"index"`
	Name        string
	Description string
	ParentID    string    `gorm:"size:64"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

// File mirrors models.FileRecord.
type File struct {
	ID               string `gorm:"primaryKey;size:64"`
	Position         int    `gorm:"index"`
	Name             string
	OriginalFilename string
	Description      string
	CategoryID       string `gorm:"index;size:64"`
	Size             int64  `gorm:"check:size >= 0"`
	ContentType      string
	Pathname         string `gorm:"index"`
	URL              string
	EntityType       string `gorm:"size:16;index:idx_file_entity"`
	EntityID         string `gorm:"size:64;index:idx_file_entity"`
	Tags             datatypes.JSONSlice[string]
	UploadedBy       string
	UploadedAt       time.Time
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
}

// All lists every row model for AutoMigrate.
func All() []any {
	return []any{
		&Meta{}, &Vendor{}, &Resource{}, &JobRequirement{}, &ProcessFlow{},
		&Skill{}, &FileCategory{}, &File{},
	}
}
