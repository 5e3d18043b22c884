// Package controller implements the core business logic (service layer)
// of the CRM, validating input, orchestrating the entity store and the file
// transfer proxy, and sending change events.
package controller

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gartstein/staffing/internal/crm/blob"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/events"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/gartstein/staffing/internal/crm/search"
	"github.com/gartstein/staffing/internal/crm/store"
	"github.com/gartstein/staffing/internal/crm/upload"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(eventType events.EventType, entityID string, payload any)
}

// FileTransfer moves file bytes to and from the object store.
type FileTransfer interface {
	Upload(ctx context.Context, req upload.Request) (models.FileMetadata, error)
	Delete(ctx context.Context, pathname string) error
	List(ctx context.Context, prefix string) ([]blob.Object, error)
	Policy(c upload.Context) upload.Policy
}

// Repository is the entity store as seen by the service.
type Repository interface {
	Snapshot() *models.Snapshot
	CheckIntegrity() []store.IntegrityIssue

	AddVendor(ctx context.Context, v models.Vendor) (models.Vendor, error)
	UpdateVendor(ctx context.Context, id string, u models.VendorUpdate) (models.Vendor, error)
	SetMainContact(ctx context.Context, vendorID, contactID string) (models.Vendor, error)
	DeleteVendor(ctx context.Context, id string) error
	GetVendor(id string) (models.Vendor, error)
	ListVendors() []models.Vendor

	AddResource(ctx context.Context, r models.Resource) (models.Resource, error)
	UpdateResource(ctx context.Context, id string, u models.ResourceUpdate) (models.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	GetResource(id string) (models.Resource, error)
	ListResources() []models.Resource

	AddJobRequirement(ctx context.Context, j models.JobRequirement) (models.JobRequirement, error)
	UpdateJobRequirement(ctx context.Context, id string, u models.JobRequirementUpdate) (models.JobRequirement, error)
	DeleteJobRequirement(ctx context.Context, id string) error
	GetJobRequirement(id string) (models.JobRequirement, error)
	ListJobRequirements() []models.JobRequirement

	AddProcessFlow(ctx context.Context, f models.ProcessFlow) (models.ProcessFlow, error)
	UpdateProcessFlow(ctx context.Context, id string, u models.ProcessFlowUpdate) (models.ProcessFlow, error)
	DeleteProcessFlow(ctx context.Context, id string) error
	GetProcessFlow(id string) (models.ProcessFlow, error)
	ListProcessFlows() []models.ProcessFlow
	ProcessFlowHistory(id string) ([]pipeline.HistoryEntry, error)

	AddTechStackSkill(ctx context.Context, skill string) error
	ListTechStackSkills() []string

	AddFileCategory(ctx context.Context, c models.FileCategory) (models.FileCategory, error)
	UpdateFileCategory(ctx context.Context, id string, u models.FileCategoryUpdate) (models.FileCategory, error)
	DeleteFileCategory(ctx context.Context, id string) error
	GetFileCategory(id string) (models.FileCategory, error)
	ListFileCategories() []models.FileCategory

	AddFile(ctx context.Context, f models.FileRecord) (models.FileRecord, error)
	UpdateFile(ctx context.Context, id string, u models.FileRecordUpdate) (models.FileRecord, error)
	DeleteFile(ctx context.Context, id string) error
	GetFile(id string) (models.FileRecord, error)
	ListFiles() []models.FileRecord
	FilesByEntity(entityType models.EntityType, entityID string) []models.FileRecord
	FilesByCategory(categoryID string) []models.FileRecord
}

// CRMService provides every CRM operation exposed by the transports.
type CRMService struct {
	repo     Repository
	files    FileTransfer
	producer EventProducer
	logger   *zap.Logger
	now      func() time.Time
}

// NewCRMService constructs a CRMService with a repository, a file transfer
// proxy, an event producer, and a logger.
func NewCRMService(repo Repository, files FileTransfer, producer EventProducer, logger *zap.Logger) *CRMService {
	return &CRMService{
		repo:     repo,
		files:    files,
		producer: producer,
		logger:   logger.Named("crm_service"),
		now:      time.Now,
	}
}

// ListOptions sorts a list view. An empty SortBy keeps insertion order.
type ListOptions struct {
	SortBy    string
	Direction search.Direction
}

func sorted[T any](items []T, fields map[string]search.Field[T], opts ListOptions) ([]T, error) {
	if opts.SortBy == "" {
		return items, nil
	}
	if err := search.SortBy(items, fields, opts.SortBy, opts.Direction); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	return items, nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", e.ErrInvalidInput, field)
	}
	return nil
}

func validEmail(field, value string) error {
	if err := required(field, value); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(value); err != nil {
		return fmt.Errorf("%w: %s is not a valid email", e.ErrInvalidInput, field)
	}
	return nil
}

func optionalEmail(field, value string) error {
	if value == "" {
		return nil
	}
	return validEmail(field, value)
}

// Snapshot returns a copy of the full state for read models.
func (s *CRMService) Snapshot() *models.Snapshot {
	return s.repo.Snapshot()
}

// Search runs the global search. A blank query matches nothing and skips the
// scan.
func (s *CRMService) Search(query string) search.Results {
	q, ok := search.Normalize(query)
	if !ok {
		return search.Results{
			Vendors:   []models.Vendor{},
			Resources: []models.Resource{},
			Jobs:      []models.JobRequirement{},
		}
	}
	return search.All(s.repo.Snapshot(), q)
}

// Integrity reports dangling references.
func (s *CRMService) Integrity() []store.IntegrityIssue {
	return s.repo.CheckIntegrity()
}

// Vendors

func validateVendor(v models.Vendor) error {
	if err := required("name", v.Name); err != nil {
		return err
	}
	if err := required("company", v.Company); err != nil {
		return err
	}
	if err := validEmail("email", v.Email); err != nil {
		return err
	}
	if v.Status != models.VendorActive && v.Status != models.VendorInactive {
		return fmt.Errorf("%w: unknown vendor status %q", e.ErrInvalidInput, v.Status)
	}
	for _, c := range v.Contacts {
		if err := required("contact name", c.Name); err != nil {
			return err
		}
		if err := optionalEmail("contact email", c.Email); err != nil {
			return err
		}
	}
	return nil
}

// CreateVendor validates and stores a vendor. Status defaults to active.
func (s *CRMService) CreateVendor(ctx context.Context, v models.Vendor) (models.Vendor, error) {
	if v.Status == "" {
		v.Status = models.VendorActive
	}
	if err := validateVendor(v); err != nil {
		return models.Vendor{}, err
	}
	created, err := s.repo.AddVendor(ctx, v)
	if err != nil {
		return models.Vendor{}, fmt.Errorf("failed to create vendor: %w", err)
	}
	s.producer.Produce(events.VendorCreated, created.ID, created)
	return created, nil
}

// UpdateVendor patches a vendor and validates the result.
func (s *CRMService) UpdateVendor(ctx context.Context, id string, u models.VendorUpdate) (models.Vendor, error) {
	current, err := s.repo.GetVendor(id)
	if err != nil {
		return models.Vendor{}, err
	}
	u.Apply(&current)
	if err := validateVendor(current); err != nil {
		return models.Vendor{}, err
	}

	updated, err := s.repo.UpdateVendor(ctx, id, u)
	if err != nil {
		return models.Vendor{}, wrap("update vendor", err)
	}
	s.producer.Produce(events.VendorUpdated, id, updated)
	return updated, nil
}

// SetMainContact makes contactID the vendor's only main contact.
func (s *CRMService) SetMainContact(ctx context.Context, vendorID, contactID string) (models.Vendor, error) {
	updated, err := s.repo.SetMainContact(ctx, vendorID, contactID)
	if err != nil {
		return models.Vendor{}, wrap("set main contact", err)
	}
	s.producer.Produce(events.VendorUpdated, vendorID, updated)
	return updated, nil
}

func (s *CRMService) DeleteVendor(ctx context.Context, id string) error {
	if err := s.repo.DeleteVendor(ctx, id); err != nil {
		return wrap("delete vendor", err)
	}
	s.producer.Produce(events.VendorDeleted, id, nil)
	return nil
}

func (s *CRMService) GetVendor(id string) (models.Vendor, error) {
	return s.repo.GetVendor(id)
}

// ListVendors returns vendors, optionally restricted to a status.
func (s *CRMService) ListVendors(status string, opts ListOptions) ([]models.Vendor, error) {
	out := []models.Vendor{}
	for _, v := range s.repo.ListVendors() {
		if status == "" || status == "all" || string(v.Status) == status {
			out = append(out, v)
		}
	}
	return sorted(out, search.VendorFields, opts)
}

// Resources

func validateResource(r models.Resource) error {
	if err := required("name", r.Name); err != nil {
		return err
	}
	if err := validEmail("email", r.Email); err != nil {
		return err
	}
	if r.Experience < 0 {
		return fmt.Errorf("%w: experience must not be negative", e.ErrInvalidInput)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown resource type %q", e.ErrInvalidInput, r.Type)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown resource status %q", e.ErrInvalidInput, r.Status)
	}
	if r.HourlyRate != nil && *r.HourlyRate < 0 {
		return fmt.Errorf("%w: hourly rate must not be negative", e.ErrInvalidInput)
	}
	return nil
}

// CreateResource validates and stores a resource. Type defaults to InHouse
// and status to available.
func (s *CRMService) CreateResource(ctx context.Context, r models.Resource) (models.Resource, error) {
	if r.Type == "" {
		r.Type = models.ResourceInHouse
	}
	if r.Status == "" {
		r.Status = models.ResourceAvailable
	}
	if r.TechStack == nil {
		r.TechStack = []string{}
	}
	if err := validateResource(r); err != nil {
		return models.Resource{}, err
	}
	created, err := s.repo.AddResource(ctx, r)
	if err != nil {
		return models.Resource{}, fmt.Errorf("failed to create resource: %w", err)
	}
	s.producer.Produce(events.ResourceCreated, created.ID, created)
	return created, nil
}

func (s *CRMService) UpdateResource(ctx context.Context, id string, u models.ResourceUpdate) (models.Resource, error) {
	current, err := s.repo.GetResource(id)
	if err != nil {
		return models.Resource{}, err
	}
	u.Apply(&current)
	if err := validateResource(current); err != nil {
		return models.Resource{}, err
	}

	updated, err := s.repo.UpdateResource(ctx, id, u)
	if err != nil {
		return models.Resource{}, wrap("update resource", err)
	}
	s.producer.Produce(events.ResourceUpdated, id, updated)
	return updated, nil
}

func (s *CRMService) DeleteResource(ctx context.Context, id string) error {
	if err := s.repo.DeleteResource(ctx, id); err != nil {
		return wrap("delete resource", err)
	}
	s.producer.Produce(events.ResourceDeleted, id, nil)
	return nil
}

func (s *CRMService) GetResource(id string) (models.Resource, error) {
	return s.repo.GetResource(id)
}

// ListResources filters by status and type ("" or "all" disable a filter).
func (s *CRMService) ListResources(status, resourceType string, opts ListOptions) ([]models.Resource, error) {
	return sorted(search.ResourcesBy(s.repo.ListResources(), status, resourceType), search.ResourceFields, opts)
}

// Job requirements

func validateJob(j models.JobRequirement) error {
	if err := required("title", j.Title); err != nil {
		return err
	}
	if err := required("description", j.Description); err != nil {
		return err
	}
	if j.Experience < 0 {
		return fmt.Errorf("%w: experience must not be negative", e.ErrInvalidInput)
	}
	if !j.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", e.ErrInvalidInput, j.Priority)
	}
	if !j.Status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", e.ErrInvalidInput, j.Status)
	}
	if err := optionalEmail("contact email", j.ContactEmail); err != nil {
		return err
	}
	if j.StartDate != nil && j.EndDate != nil && j.EndDate.Before(*j.StartDate) {
		return fmt.Errorf("%w: end date before start date", e.ErrInvalidInput)
	}
	return nil
}

// CreateJobRequirement validates and stores a job. Priority defaults to
// medium and status to open.
func (s *CRMService) CreateJobRequirement(ctx context.Context, j models.JobRequirement) (models.JobRequirement, error) {
	if j.Priority == "" {
		j.Priority = models.PriorityMedium
	}
	if j.Status == "" {
		j.Status = models.JobOpen
	}
	if j.TechStack == nil {
		j.TechStack = []string{}
	}
	if err := validateJob(j); err != nil {
		return models.JobRequirement{}, err
	}
	created, err := s.repo.AddJobRequirement(ctx, j)
	if err != nil {
		return models.JobRequirement{}, fmt.Errorf("failed to create job requirement: %w", err)
	}
	s.producer.Produce(events.JobCreated, created.ID, created)
	return created, nil
}

func (s *CRMService) UpdateJobRequirement(ctx context.Context, id string, u models.JobRequirementUpdate) (models.JobRequirement, error) {
	current, err := s.repo.GetJobRequirement(id)
	if err != nil {
		return models.JobRequirement{}, err
	}
	u.Apply(&current)
	if err := validateJob(current); err != nil {
		return models.JobRequirement{}, err
	}

	updated, err := s.repo.UpdateJobRequirement(ctx, id, u)
	if err != nil {
		return models.JobRequirement{}, wrap("update job requirement", err)
	}
	s.producer.Produce(events.JobUpdated, id, updated)
	return updated, nil
}

func (s *CRMService) DeleteJobRequirement(ctx context.Context, id string) error {
	if err := s.repo.DeleteJobRequirement(ctx, id); err != nil {
		return wrap("delete job requirement", err)
	}
	s.producer.Produce(events.JobDeleted, id, nil)
	return nil
}

func (s *CRMService) GetJobRequirement(id string) (models.JobRequirement, error) {
	return s.repo.GetJobRequirement(id)
}

// ListJobRequirements filters by status and priority.
func (s *CRMService) ListJobRequirements(status, priority string, opts ListOptions) ([]models.JobRequirement, error) {
	return sorted(search.JobsBy(s.repo.ListJobRequirements(), status, priority), search.JobFields, opts)
}

// Skills

func (s *CRMService) AddSkill(ctx context.Context, skill string) error {
	if err := s.repo.AddTechStackSkill(ctx, skill); err != nil {
		return wrap("add skill", err)
	}
	s.producer.Produce(events.SkillAdded, strings.TrimSpace(skill), nil)
	return nil
}

func (s *CRMService) ListSkills() []string {
	return s.repo.ListTechStackSkills()
}
