package store

import (
	"time"

	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/gartstein/staffing/internal/pkg/utils"
)

// DefaultSkills is the initial tech stack vocabulary.
var DefaultSkills = []string{
	"React", "Angular", "Vue.js", "Node.js", "Python", "Java", "C#", ".NET",
	"TypeScript", "JavaScript", "PHP", "Ruby", "Go", "Rust", "Swift", "Kotlin",
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Seed returns the demo data a fresh installation starts with. References
// between the seeded records use ids from newID.
func Seed(newID func() string) *models.Snapshot {
	vendorID, resourceID, jobID := newID(), newID(), newID()
	catVendor, catResume, catJob, catContract, catMisc := newID(), newID(), newID(), newID(), newID()

	flowUpdated := day("2024-01-22")

	return &models.Snapshot{
		Vendors: []models.Vendor{{
			ID:      vendorID,
			Name:    "TechCorp Solutions",
			Company: "TechCorp Inc.",
			Email:   "contact@techcorp.com",
			Phone:   "+1-555-0101",
			Website: "https://techcorp.example.com",
			Address: "123 Tech Street, San Francisco, CA",
			Contacts: []models.VendorContact{
				{
					ID: newID(), Name: "John Smith", Email: "john@techcorp.com", Phone: "+1-555-0102",
					Designation: "HR Manager", Department: "Human Resources", IsMainContact: true,
				},
				{
					ID: newID(), Name: "Sarah Johnson", Email: "sarah@techcorp.com", Phone: "+1-555-0103",
					Designation: "Technical Lead", Department: "Engineering",
				},
			},
			Status:    models.VendorActive,
			Category:  "Technology",
			Notes:     "Premium vendor with excellent track record",
			CreatedAt: day("2024-01-15"),
			UpdatedAt: day("2024-01-15"),
		}},
		Resources: []models.Resource{{
			ID:                 resourceID,
			Name:               "Alice Cooper",
			Email:              "alice@company.com",
			Phone:              "+1-555-0201",
			TechStack:          []string{"React", "Node.js", "TypeScript"},
			Experience:         5,
			Type:               models.ResourceInHouse,
			Status:             models.ResourceAvailable,
			HourlyRate:         utils.Ptr(75.0),
			Location:           "New York, NY",
			RemoteAvailability: utils.Ptr(true),
			StartDate:          utils.Ptr(day("2023-06-15")),
			Skills: []models.Skill{
				{Name: "React", Level: models.SkillExpert},
				{Name: "Node.js", Level: models.SkillIntermediate},
				{Name: "TypeScript", Level: models.SkillExpert},
			},
			Certifications: []string{"AWS Certified Developer", "MongoDB Certified Developer"},
			CreatedAt:      day("2024-01-10"),
			UpdatedAt:      day("2024-01-10"),
		}},
		JobRequirements: []models.JobRequirement{{
			ID:              jobID,
			Title:           "Senior React Developer",
			Description:     "Looking for a senior React developer with strong TypeScript skills",
			TechStack:       []string{"React", "TypeScript", "Node.js"},
			Experience:      5,
			Location:        "San Francisco, CA",
			RemoteAvailable: utils.Ptr(true),
			Budget:          utils.Ptr(150000.0),
			Duration:        "6 months",
			Priority:        models.PriorityHigh,
			Status:          models.JobOpen,
			ClientName:      "TechCorp Inc.",
			ContactPerson:   "John Smith",
			ContactEmail:    "john@techcorp.com",
			ContactPhone:    "+1-555-0102",
			StartDate:       utils.Ptr(day("2024-02-15")),
			EndDate:         utils.Ptr(day("2024-08-15")),
			Requirements:    []string{"5+ years React experience", "TypeScript proficiency", "Team leadership"},
			Benefits:        []string{"Health insurance", "Remote work", "Flexible hours"},
			CreatedAt:       day("2024-01-20"),
			UpdatedAt:       day("2024-01-20"),
		}},
		ProcessFlows: []models.ProcessFlow{{
			ID:            newID(),
			JobID:         jobID,
			ResourceID:    resourceID,
			Status:        pipeline.ResumeSubmitted,
			ScheduledDate: utils.Ptr(day("2024-01-25")),
			Notes:         "Resume submitted to client",
			CreatedAt:     flowUpdated,
			UpdatedAt:     flowUpdated,
			UpdatedBy:     "admin",
			History: []models.StatusChange{{
				Status: pipeline.ResumeSubmitted, At: flowUpdated, By: "admin", Note: "Resume submitted to client",
			}},
		}},
		TechStackSkills: append([]string{}, DefaultSkills...),
		FileCategories: []models.FileCategory{
			{ID: catVendor, Name: "Vendor Documents", Description: "Documents related to vendors", CreatedAt: day("2024-01-15"), UpdatedAt: day("2024-01-15")},
			{ID: catResume, Name: "Resource Resumes", Description: "Resumes and CVs of resources", CreatedAt: day("2024-01-15"), UpdatedAt: day("2024-01-15")},
			{ID: catJob, Name: "Job Requirements", Description: "Job descriptions and requirements", CreatedAt: day("2024-01-15"), UpdatedAt: day("2024-01-15")},
			{ID: catContract, Name: "Contracts", Description: "Legal contracts and agreements", CreatedAt: day("2024-01-15"), UpdatedAt: day("2024-01-15")},
			{ID: catMisc, Name: "Miscellaneous", Description: "Other documents", CreatedAt: day("2024-01-15"), UpdatedAt: day("2024-01-15")},
		},
		Files: []models.FileRecord{
			{
				ID:               newID(),
				Name:             "TechCorp Agreement",
				OriginalFilename: "techcorp_agreement_2024.pdf",
				Description:      "Service agreement with TechCorp",
				CategoryID:       catVendor,
				Size:             2500000,
				ContentType:      "application/pdf",
				Pathname:         "contracts/techcorp_agreement_2024.pdf",
				URL:              "https://example.com/files/techcorp_agreement_2024.pdf",
				EntityType:       models.EntityVendor,
				EntityID:         vendorID,
				Tags:             []string{"agreement", "contract", "2024"},
				UploadedBy:       "admin",
				UploadedAt:       day("2024-01-20"),
				UpdatedAt:        day("2024-01-20"),
			},
			{
				ID:               newID(),
				Name:             "Alice Cooper Resume",
				OriginalFilename: "alice_cooper_resume.pdf",
				CategoryID:       catResume,
				Size:             1500000,
				ContentType:      "application/pdf",
				Pathname:         "resumes/alice_cooper_resume.pdf",
				URL:              "https://example.com/files/alice_cooper_resume.pdf",
				EntityType:       models.EntityResource,
				EntityID:         resourceID,
				Tags:             []string{"resume", "developer"},
				UploadedBy:       "admin",
				UploadedAt:       day("2024-01-10"),
				UpdatedAt:        day("2024-01-10"),
			},
			{
				ID:               newID(),
				Name:             "Senior React Developer JD",
				OriginalFilename: "senior_react_developer_jd.docx",
				CategoryID:       catJob,
				Size:             500000,
				ContentType:      "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				Pathname:         "jobs/senior_react_developer_jd.docx",
				URL:              "https://example.com/files/senior_react_developer_jd.docx",
				EntityType:       models.EntityJob,
				EntityID:         jobID,
				Tags:             []string{"job description", "react", "senior"},
				UploadedBy:       "admin",
				UploadedAt:       day("2024-01-18"),
				UpdatedAt:        day("2024-01-18"),
			},
		},
	}
}
