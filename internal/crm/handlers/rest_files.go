package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gartstein/staffing/internal/crm/auth"
	"github.com/gartstein/staffing/internal/crm/controller"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/upload"
	"go.uber.org/zap"
)

// maxMemory is the part of a multipart form kept in memory; the rest spills
// to temporary files.
const maxMemory = 32 << 20

// formFile opens the "file" part of a multipart request as an upload request
// for the given context. The caller closes the returned file.
func formFile(r *http.Request, c upload.Context) (upload.Request, multipart.File, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return upload.Request{}, nil, fmt.Errorf("%w: malformed multipart form: %v", e.ErrInvalidInput, err)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return upload.Request{}, nil, fmt.Errorf("%w: No file provided", e.ErrInvalidInput)
	}
	req := upload.Request{
		Context:     c,
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
		Body:        f,
	}
	if p, ok := auth.FromContext(r.Context()); ok {
		req.UserID = p.ID
	}
	return req, f, nil
}

// uploadEndpoint stores a document and returns its metadata without linking
// it to any record.
func (h *RESTHandler) uploadEndpoint(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	req, f, err := formFile(r, upload.ContextEndpoint)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer f.Close()

	meta, err := h.service.StoreFile(r.Context(), req)
	if err != nil {
		h.writeErrorAs(w, err, "Failed to upload file")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *RESTHandler) uploadResume(w http.ResponseWriter, r *http.Request, p map[string]string) {
	req, f, err := formFile(r, upload.ContextResume)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer f.Close()

	res, err := h.service.UploadResume(r.Context(), p["id"], req)
	h.respond(w, http.StatusOK, res, err)
}

// uploadFile stores a file and registers it. Record fields come from the
// remaining form values; tags are comma separated.
func (h *RESTHandler) uploadFile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	req, f, err := formFile(r, upload.ContextAttachment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer f.Close()

	if c := r.FormValue("context"); c != "" {
		req.Context = upload.Context(c)
	}
	req.Folder = r.FormValue("folder")

	d := controller.FileDetails{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		CategoryID:  r.FormValue("categoryId"),
		EntityType:  models.EntityType(r.FormValue("entityType")),
		EntityID:    r.FormValue("entityId"),
		Tags:        splitTags(r.FormValue("tags")),
	}
	rec, err := h.service.UploadFile(r.Context(), req, d)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Debug("File registered", zap.String("id", rec.ID), zap.String("pathname", rec.Pathname))
	writeJSON(w, http.StatusCreated, rec)
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (h *RESTHandler) listFiles(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	out, err := h.service.ListFiles(controller.FileQuery{
		Text:       q.Get("q"),
		Pattern:    q.Get("pattern"),
		CategoryID: q.Get("categoryId"),
		EntityType: models.EntityType(q.Get("entityType")),
		EntityID:   q.Get("entityId"),
	}, listOptions(r))
	h.respond(w, http.StatusOK, out, err)
}

func (h *RESTHandler) searchFiles(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	out, err := h.service.ListFiles(controller.FileQuery{
		Text:    q.Get("q"),
		Pattern: q.Get("pattern"),
	}, listOptions(r))
	h.respond(w, http.StatusOK, out, err)
}

type policyView struct {
	Context  upload.Context  `json:"context"`
	MaxBytes int64           `json:"maxBytes"`
	MaxSize  string          `json:"maxSize"`
	Accept   []string        `json:"accept"`
	Folder   string          `json:"folder,omitempty"`
	KeyStyle upload.KeyStyle `json:"keyStyle"`
}

func (h *RESTHandler) uploadPolicies(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	pols := h.service.Policies()
	out := make(map[upload.Context]policyView, len(pols))
	for c, p := range pols {
		out[c] = policyView{
			Context:  c,
			MaxBytes: p.MaxBytes,
			MaxSize:  upload.FormatFileSize(p.MaxBytes),
			Accept:   p.Accept,
			Folder:   p.Folder,
			KeyStyle: p.KeyStyle,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// reconcile reports orphans on GET and removes them on POST.
func (h *RESTHandler) reconcile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	remove := r.Method == http.MethodPost
	report, err := h.service.Reconcile(r.Context(), q.Get("prefix"), q.Get("pattern"), remove)
	h.respond(w, http.StatusOK, report, err)
}

// serveFile hands /files/{path} to the object file server.
func (h *RESTHandler) serveFile(w http.ResponseWriter, r *http.Request, p map[string]string) {
	r2 := r.Clone(r.Context())
	r2.URL.Path = "/" + p["path"]
	r2.URL.RawPath = ""
	h.files.ServeHTTP(w, r2)
}
