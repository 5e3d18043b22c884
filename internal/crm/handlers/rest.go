package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gartstein/staffing/internal/crm/controller"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/gartstein/staffing/internal/crm/search"
	"github.com/gartstein/staffing/internal/crm/store"
	"github.com/gartstein/staffing/internal/crm/upload"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

// CRMController defines the business logic interface that the REST and
// gRPC handlers invoke.
type CRMController interface {
	Snapshot() *models.Snapshot
	Search(query string) search.Results
	Integrity() []store.IntegrityIssue

	CreateVendor(ctx context.Context, v models.Vendor) (models.Vendor, error)
	UpdateVendor(ctx context.Context, id string, u models.VendorUpdate) (models.Vendor, error)
	SetMainContact(ctx context.Context, vendorID, contactID string) (models.Vendor, error)
	DeleteVendor(ctx context.Context, id string) error
	GetVendor(id string) (models.Vendor, error)
	ListVendors(status string, opts controller.ListOptions) ([]models.Vendor, error)

	CreateResource(ctx context.Context, r models.Resource) (models.Resource, error)
	UpdateResource(ctx context.Context, id string, u models.ResourceUpdate) (models.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	GetResource(id string) (models.Resource, error)
	ListResources(status, resourceType string, opts controller.ListOptions) ([]models.Resource, error)
	UploadResume(ctx context.Context, resourceID string, req upload.Request) (models.Resource, error)

	CreateJobRequirement(ctx context.Context, j models.JobRequirement) (models.JobRequirement, error)
	UpdateJobRequirement(ctx context.Context, id string, u models.JobRequirementUpdate) (models.JobRequirement, error)
	DeleteJobRequirement(ctx context.Context, id string) error
	GetJobRequirement(id string) (models.JobRequirement, error)
	ListJobRequirements(status, priority string, opts controller.ListOptions) ([]models.JobRequirement, error)

	CreateProcessFlow(ctx context.Context, f models.ProcessFlow) (models.ProcessFlow, error)
	UpdateProcessFlow(ctx context.Context, id string, u models.ProcessFlowUpdate) (models.ProcessFlow, error)
	UpdateProcessFlowStatus(ctx context.Context, id string, status pipeline.Status, notes, actor string) (models.ProcessFlow, error)
	DeleteProcessFlow(ctx context.Context, id string) error
	GetProcessFlow(id string) (models.ProcessFlow, error)
	ListProcessFlows(status string, opts controller.ListOptions) ([]models.ProcessFlow, error)
	ProcessFlowHistory(id string) ([]pipeline.HistoryEntry, error)
	ProcessFlowsForResource(resourceID string) ([]models.ProcessFlow, error)
	ProcessFlowsForJob(jobID string) ([]models.ProcessFlow, error)

	AddSkill(ctx context.Context, skill string) error
	ListSkills() []string

	CreateFileCategory(ctx context.Context, c models.FileCategory) (models.FileCategory, error)
	UpdateFileCategory(ctx context.Context, id string, u models.FileCategoryUpdate) (models.FileCategory, error)
	DeleteFileCategory(ctx context.Context, id string) error
	GetFileCategory(id string) (models.FileCategory, error)
	ListFileCategories() []models.FileCategory

	StoreFile(ctx context.Context, req upload.Request) (models.FileMetadata, error)
	UploadFile(ctx context.Context, req upload.Request, d controller.FileDetails) (models.FileRecord, error)
	UpdateFile(ctx context.Context, id string, u models.FileRecordUpdate) (models.FileRecord, error)
	DeleteFile(ctx context.Context, id string) error
	GetFile(id string) (models.FileRecord, error)
	ListFiles(q controller.FileQuery, opts controller.ListOptions) ([]models.FileRecord, error)
	Policies() map[upload.Context]upload.Policy
	Reconcile(ctx context.Context, prefix, pattern string, remove bool) (controller.ReconcileReport, error)
}

// RESTHandler serves the JSON API on a grpc-gateway runtime mux.
type RESTHandler struct {
	service CRMController
	logger  *zap.Logger
	now     func() time.Time
	// files serves stored objects under /files/ when set.
	files http.Handler
	// counter adds the mirror's status counts to the dashboard when set.
	counter StatusCounter
}

// StatusCounter counts process flows per status in a mirror database.
type StatusCounter interface {
	StatusCounts(ctx context.Context) (map[pipeline.Status]int64, error)
}

// RESTOption configures a RESTHandler.
type RESTOption func(*RESTHandler)

// WithFileServer serves stored objects under /files/.
func WithFileServer(h http.Handler) RESTOption {
	return func(r *RESTHandler) { r.files = h }
}

// WithStatusCounter reports the mirror's per-status counts on the dashboard.
func WithStatusCounter(c StatusCounter) RESTOption {
	return func(r *RESTHandler) { r.counter = c }
}

// WithClock replaces time.Now for the calendar and dashboard views.
func WithClock(now func() time.Time) RESTOption {
	return func(r *RESTHandler) { r.now = now }
}

func NewRESTHandler(service CRMController, logger *zap.Logger, opts ...RESTOption) *RESTHandler {
	h := &RESTHandler{
		service: service,
		logger:  logger.Named("rest_handler"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type route struct {
	method  string
	pattern string
	handler runtime.HandlerFunc
}

func (h *RESTHandler) routes() []route {
	rs := []route{
		{http.MethodGet, "/health", h.health},
		{http.MethodPost, "/api/upload", h.uploadEndpoint},

		{http.MethodGet, "/v1/vendors", h.listVendors},
		{http.MethodPost, "/v1/vendors", create(h, h.service.CreateVendor)},
		{http.MethodGet, "/v1/vendors/{id}", fetch(h, h.service.GetVendor)},
		{http.MethodPatch, "/v1/vendors/{id}", update(h, h.service.UpdateVendor)},
		{http.MethodDelete, "/v1/vendors/{id}", remove(h, h.service.DeleteVendor)},
		{http.MethodPost, "/v1/vendors/{id}/main-contact", h.setMainContact},

		{http.MethodGet, "/v1/resources", h.listResources},
		{http.MethodPost, "/v1/resources", create(h, h.service.CreateResource)},
		{http.MethodGet, "/v1/resources/{id}", fetch(h, h.service.GetResource)},
		{http.MethodPatch, "/v1/resources/{id}", update(h, h.service.UpdateResource)},
		{http.MethodDelete, "/v1/resources/{id}", remove(h, h.service.DeleteResource)},
		{http.MethodPost, "/v1/resources/{id}/resume", h.uploadResume},
		{http.MethodGet, "/v1/resources/{id}/process-flows", fetch(h, h.service.ProcessFlowsForResource)},

		{http.MethodGet, "/v1/jobs", h.listJobs},
		{http.MethodPost, "/v1/jobs", create(h, h.service.CreateJobRequirement)},
		{http.MethodGet, "/v1/jobs/{id}", fetch(h, h.service.GetJobRequirement)},
		{http.MethodPatch, "/v1/jobs/{id}", update(h, h.service.UpdateJobRequirement)},
		{http.MethodDelete, "/v1/jobs/{id}", remove(h, h.service.DeleteJobRequirement)},
		{http.MethodGet, "/v1/jobs/{id}/process-flows", fetch(h, h.service.ProcessFlowsForJob)},

		{http.MethodGet, "/v1/process-flows", h.listProcessFlows},
		{http.MethodPost, "/v1/process-flows", h.createProcessFlow},
		{http.MethodGet, "/v1/process-flows/{id}", fetch(h, h.service.GetProcessFlow)},
		{http.MethodPatch, "/v1/process-flows/{id}", h.updateProcessFlow},
		{http.MethodDelete, "/v1/process-flows/{id}", remove(h, h.service.DeleteProcessFlow)},
		{http.MethodGet, "/v1/process-flows/{id}/history", h.processFlowHistory},
		{http.MethodPost, "/v1/process-flows/{id}/status", h.updateProcessFlowStatus},
		{http.MethodGet, "/v1/pipeline/statuses", h.pipelineStatuses},

		{http.MethodGet, "/v1/file-categories", h.listCategories},
		{http.MethodPost, "/v1/file-categories", create(h, h.service.CreateFileCategory)},
		{http.MethodGet, "/v1/file-categories/{id}", fetch(h, h.service.GetFileCategory)},
		{http.MethodPatch, "/v1/file-categories/{id}", update(h, h.service.UpdateFileCategory)},
		{http.MethodDelete, "/v1/file-categories/{id}", remove(h, h.service.DeleteFileCategory)},

		{http.MethodGet, "/v1/files", h.listFiles},
		{http.MethodPost, "/v1/files", h.uploadFile},
		{http.MethodGet, "/v1/files/{id}", fetch(h, h.service.GetFile)},
		{http.MethodPatch, "/v1/files/{id}", update(h, h.service.UpdateFile)},
		{http.MethodDelete, "/v1/files/{id}", remove(h, h.service.DeleteFile)},
		// after /v1/files/{id}: the mux tries the latest registration first
		{http.MethodGet, "/v1/files/search", h.searchFiles},
		{http.MethodGet, "/v1/upload/policies", h.uploadPolicies},
		{http.MethodGet, "/v1/reconcile", h.reconcile},
		{http.MethodPost, "/v1/reconcile", h.reconcile},

		{http.MethodGet, "/v1/skills", h.listSkills},
		{http.MethodPost, "/v1/skills", h.addSkill},

		{http.MethodGet, "/v1/search", h.searchAll},
		{http.MethodGet, "/v1/calendar", h.calendarDay},
		{http.MethodGet, "/v1/calendar/upcoming", h.calendarUpcoming},
		{http.MethodGet, "/v1/calendar/month", h.calendarMonth},
		{http.MethodGet, "/v1/dashboard", h.dashboard},
		{http.MethodGet, "/v1/integrity", h.integrity},
	}
	if h.files != nil {
		rs = append(rs, route{http.MethodGet, "/files/{path=**}", h.serveFile})
	}
	return rs
}

// Register adds every route to mux.
func (h *RESTHandler) Register(mux *runtime.ServeMux) error {
	for _, rt := range h.routes() {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return fmt.Errorf("failed to register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return nil
}

func (h *RESTHandler) health(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps a service error to a status code and a JSON body.
func (h *RESTHandler) writeError(w http.ResponseWriter, err error) {
	h.writeErrorAs(w, err, "internal server error")
}

// writeErrorAs is writeError with the message used for internal errors.
func (h *RESTHandler) writeErrorAs(w http.ResponseWriter, err error, internal string) {
	code := httpStatus(err)
	msg := publicMessage(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("Internal server error", zap.Error(err))
		msg = internal
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, e.ErrInvalidInput),
		errors.Is(err, e.ErrFileTooLarge),
		errors.Is(err, e.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, e.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, e.ErrInvalidTransition),
		errors.Is(err, e.ErrReferenceViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var sentinels = []error{
	e.ErrNotFound,
	e.ErrInvalidInput,
	e.ErrFileTooLarge,
	e.ErrUnsupportedType,
	e.ErrUnauthenticated,
	e.ErrInvalidTransition,
	e.ErrReferenceViolation,
}

// publicMessage drops the operation and sentinel prefixes from a wrapped
// error, so "failed to x: invalid input: name is required" becomes
// "name is required".
func publicMessage(err error) string {
	msg := err.Error()
	for _, s := range sentinels {
		if !errors.Is(err, s) {
			continue
		}
		if i := strings.LastIndex(msg, s.Error()+": "); i >= 0 {
			return msg[i+len(s.Error())+2:]
		}
	}
	return msg
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", e.ErrInvalidInput, err)
	}
	return nil
}

func listOptions(r *http.Request) controller.ListOptions {
	q := r.URL.Query()
	return controller.ListOptions{
		SortBy:    q.Get("sortBy"),
		Direction: search.ParseDirection(q.Get("direction")),
	}
}
