package handlers

import (
	"context"
	"net/http"

	"github.com/gartstein/staffing/internal/crm/auth"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
)

func (h *RESTHandler) respond(w http.ResponseWriter, code int, v any, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, code, v)
}

// create decodes a T from the body and answers 201 with the stored record.
func create[T any](h *RESTHandler, fn func(context.Context, T) (T, error)) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var in T
		if err := decodeJSON(r, &in); err != nil {
			h.writeError(w, err)
			return
		}
		out, err := fn(r.Context(), in)
		h.respond(w, http.StatusCreated, out, err)
	}
}

// update decodes a patch U and applies it to the record named by {id}.
func update[U, T any](h *RESTHandler, fn func(context.Context, string, U) (T, error)) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, p map[string]string) {
		var patch U
		if err := decodeJSON(r, &patch); err != nil {
			h.writeError(w, err)
			return
		}
		out, err := fn(r.Context(), p["id"], patch)
		h.respond(w, http.StatusOK, out, err)
	}
}

func fetch[T any](h *RESTHandler, fn func(string) (T, error)) runtime.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request, p map[string]string) {
		out, err := fn(p["id"])
		h.respond(w, http.StatusOK, out, err)
	}
}

func remove(h *RESTHandler, fn func(context.Context, string) error) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, p map[string]string) {
		if err := fn(r.Context(), p["id"]); err != nil {
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *RESTHandler) listVendors(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	out, err := h.service.ListVendors(r.URL.Query().Get("status"), listOptions(r))
	h.respond(w, http.StatusOK, out, err)
}

func (h *RESTHandler) setMainContact(w http.ResponseWriter, r *http.Request, p map[string]string) {
	var body struct {
		ContactID string `json:"contactId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.service.SetMainContact(r.Context(), p["id"], body.ContactID)
	h.respond(w, http.StatusOK, out, err)
}

func (h *RESTHandler) listResources(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	out, err := h.service.ListResources(q.Get("status"), q.Get("type"), listOptions(r))
	h.respond(w, http.StatusOK, out, err)
}

func (h *RESTHandler) listJobs(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	out, err := h.service.ListJobRequirements(q.Get("status"), q.Get("priority"), listOptions(r))
	h.respond(w, http.StatusOK, out, err)
}

func (h *RESTHandler) listProcessFlows(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	out, err := h.service.ListProcessFlows(r.URL.Query().Get("status"), listOptions(r))
	h.respond(w, http.StatusOK, out, err)
}

// createProcessFlow records the caller as the flow's first actor.
func (h *RESTHandler) createProcessFlow(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var f models.ProcessFlow
	if err := decodeJSON(r, &f); err != nil {
		h.writeError(w, err)
		return
	}
	if f.UpdatedBy == "" {
		f.UpdatedBy = auth.Actor(r.Context())
	}
	out, err := h.service.CreateProcessFlow(r.Context(), f)
	h.respond(w, http.StatusCreated, out, err)
}

func (h *RESTHandler) updateProcessFlow(w http.ResponseWriter, r *http.Request, p map[string]string) {
	var u models.ProcessFlowUpdate
	if err := decodeJSON(r, &u); err != nil {
		h.writeError(w, err)
		return
	}
	if u.UpdatedBy == nil {
		actor := auth.Actor(r.Context())
		u.UpdatedBy = &actor
	}
	out, err := h.service.UpdateProcessFlow(r.Context(), p["id"], u)
	h.respond(w, http.StatusOK, out, err)
}

func (h *RESTHandler) updateProcessFlowStatus(w http.ResponseWriter, r *http.Request, p map[string]string) {
	var body struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	status, err := pipeline.Parse(body.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.service.UpdateProcessFlowStatus(r.Context(), p["id"], status, body.Notes, auth.Actor(r.Context()))
	h.respond(w, http.StatusOK, out, err)
}

func (h *RESTHandler) processFlowHistory(w http.ResponseWriter, _ *http.Request, p map[string]string) {
	out, err := h.service.ProcessFlowHistory(p["id"])
	h.respond(w, http.StatusOK, out, err)
}

func (h *RESTHandler) pipelineStatuses(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, pipeline.All())
}

func (h *RESTHandler) listCategories(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, h.service.ListFileCategories())
}

func (h *RESTHandler) listSkills(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, h.service.ListSkills())
}

func (h *RESTHandler) addSkill(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var body struct {
		Skill string `json:"skill"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.service.AddSkill(r.Context(), body.Skill); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.ListSkills())
}
