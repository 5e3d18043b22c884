package db

import (
	rows "github.com/gartstein/staffing/internal/crm/db/models"
	"github.com/gartstein/staffing/internal/crm/models"
	"gorm.io/datatypes"
)

func vendorRow(i int, v models.Vendor) rows.Vendor {
	return rows.Vendor{
		ID: v.ID, Position: i, Name: v.Name, Company: v.Company, Email: v.Email, Phone: v.Phone,
		Website: v.Website, Address: v.Address, Contacts: datatypes.JSONSlice[models.VendorContact](v.Contacts),
		Status: string(v.Status), Category: v.Category, Notes: v.Notes,
		CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt,
	}
}

func vendorFromRow(r rows.Vendor) models.Vendor {
	contacts := []models.VendorContact(r.Contacts)
	if contacts == nil {
		contacts = []models.VendorContact{}
	}
	return models.Vendor{
		ID: r.ID, Name: r.Name, Company: r.Company, Email: r.Email, Phone: r.Phone,
		Website: r.Website, Address: r.Address, Contacts: contacts,
		Status: models.VendorStatus(r.Status), Category: r.Category, Notes: r.Notes,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func resourceRow(i int, r models.Resource) rows.Resource {
	return rows.Resource{
		ID: r.ID, Position: i, Name: r.Name, Email: r.Email, Phone: r.Phone,
		TechStack:  datatypes.JSONSlice[string](r.TechStack),
		Experience: r.Experience, Type: string(r.Type), Status: string(r.Status),
		HourlyRate: r.HourlyRate, Location: r.Location, RemoteAvailability: r.RemoteAvailability,
		StartDate:      r.StartDate,
		Skills:         datatypes.JSONSlice[models.Skill](r.Skills),
		Certifications: datatypes.JSONSlice[string](r.Certifications),
		Resume:         datatypes.NewJSONType(r.Resume),
		CreatedAt:      r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func resourceFromRow(r rows.Resource) models.Resource {
	return models.Resource{
		ID: r.ID, Name: r.Name, Email: r.Email, Phone: r.Phone,
		TechStack:  []string(r.TechStack),
		Experience: r.Experience, Type: models.ResourceType(r.Type), Status: models.ResourceStatus(r.Status),
		HourlyRate: r.HourlyRate, Location: r.Location, RemoteAvailability: r.RemoteAvailability,
		StartDate:      r.StartDate,
		Skills:         []models.Skill(r.Skills),
		Certifications: []string(r.Certifications),
		Resume:         r.Resume.Data(),
		CreatedAt:      r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func jobRow(i int, j models.JobRequirement) rows.JobRequirement {
	return rows.JobRequirement{
		ID: j.ID, Position: i, Title: j.Title, Description: j.Description,
		TechStack:  datatypes.JSONSlice[string](j.TechStack),
		Experience: j.Experience, Location: j.Location, RemoteAvailable: j.RemoteAvailable,
		Budget: j.Budget, Duration: j.Duration, Priority: string(j.Priority), Status: string(j.Status),
		ClientName: j.ClientName, ContactPerson: j.ContactPerson, ContactEmail: j.ContactEmail,
		ContactPhone: j.ContactPhone, StartDate: j.StartDate, EndDate: j.EndDate,
		Requirements: datatypes.JSONSlice[string](j.Requirements),
		Benefits:     datatypes.JSONSlice[string](j.Benefits),
		CreatedAt:    j.CreatedAt, UpdatedAt: j.UpdatedAt,
	}
}

func jobFromRow(r rows.JobRequirement) models.JobRequirement {
	return models.JobRequirement{
		ID: r.ID, Title: r.Title, Description: r.Description,
		TechStack:  []string(r.TechStack),
		Experience: r.Experience, Location: r.Location, RemoteAvailable: r.RemoteAvailable,
		Budget: r.Budget, Duration: r.Duration, Priority: models.Priority(r.Priority), Status: models.JobStatus(r.Status),
		ClientName: r.ClientName, ContactPerson: r.ContactPerson, ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone, StartDate: r.StartDate, EndDate: r.EndDate,
		Requirements: []string(r.Requirements),
		Benefits:     []string(r.Benefits),
		CreatedAt:    r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func flowRow(i int, f models.ProcessFlow) rows.ProcessFlow {
	return rows.ProcessFlow{
		ID: f.ID, Position: i, JobID: f.JobID, ResourceID: f.ResourceID, Status: f.Status,
		ScheduledDate: f.ScheduledDate, Notes: f.Notes, UpdatedBy: f.UpdatedBy,
		History:   datatypes.JSONSlice[models.StatusChange](f.History),
		CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt,
	}
}

func flowFromRow(r rows.ProcessFlow) models.ProcessFlow {
	return models.ProcessFlow{
		ID: r.ID, JobID: r.JobID, ResourceID: r.ResourceID, Status: r.Status,
		ScheduledDate: r.ScheduledDate, Notes: r.Notes, UpdatedBy: r.UpdatedBy,
		History:   []models.StatusChange(r.History),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func categoryRow(i int, c models.FileCategory) rows.FileCategory {
	return rows.FileCategory{
		ID: c.ID, Position: i, Name: c.Name, Description: c.Description, ParentID: c.ParentID,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func categoryFromRow(r rows.FileCategory) models.FileCategory {
	return models.FileCategory{
		ID: r.ID, Name: r.Name, Description: r.Description, ParentID: r.ParentID,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func fileRow(i int, f models.FileRecord) rows.File {
	return rows.File{
		ID: f.ID, Position: i, Name: f.Name, OriginalFilename: f.OriginalFilename,
		Description: f.Description, CategoryID: f.CategoryID, Size: f.Size,
		ContentType: f.ContentType, Pathname: f.Pathname, URL: f.URL,
		EntityType: string(f.EntityType), EntityID: f.EntityID,
		Tags:       datatypes.JSONSlice[string](f.Tags),
		UploadedBy: f.UploadedBy, UploadedAt: f.UploadedAt, UpdatedAt: f.UpdatedAt,
	}
}

func fileFromRow(r rows.File) models.FileRecord {
	return models.FileRecord{
		ID: r.ID, Name: r.Name, OriginalFilename: r.OriginalFilename,
		Description: r.Description, CategoryID: r.CategoryID, Size: r.Size,
		ContentType: r.ContentType, Pathname: r.Pathname, URL: r.URL,
		EntityType: models.EntityType(r.EntityType), EntityID: r.EntityID,
		Tags:       []string(r.Tags),
		UploadedBy: r.UploadedBy, UploadedAt: r.UploadedAt, UpdatedAt: r.UpdatedAt,
	}
}

func mapRows[T, R any](items []T, fn func(int, T) R) []R {
	out := make([]R, len(items))
	for i, it := range items {
		out[i] = fn(i, it)
	}
	return out
}

func mapModels[R, T any](items []R, fn func(R) T) []T {
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = fn(it)
	}
	return out
}
