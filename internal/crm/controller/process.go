package controller

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/events"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/gartstein/staffing/internal/crm/search"
	"go.uber.org/zap"
)

// wrap annotates err with the failed operation, keeping sentinel errors
// matchable with errors.Is.
func wrap(op string, err error) error {
	return fmt.Errorf("failed to %s: %w", op, err)
}

// checkFlowRefs makes sure a flow points at an existing job and resource.
func (s *CRMService) checkFlowRefs(jobID, resourceID string) error {
	if err := required("jobId", jobID); err != nil {
		return err
	}
	if err := required("resourceId", resourceID); err != nil {
		return err
	}
	if _, err := s.repo.GetJobRequirement(jobID); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return fmt.Errorf("%w: job requirement %s does not exist", e.ErrReferenceViolation, jobID)
		}
		return err
	}
	if _, err := s.repo.GetResource(resourceID); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return fmt.Errorf("%w: resource %s does not exist", e.ErrReferenceViolation, resourceID)
		}
		return err
	}
	return nil
}

// CreateProcessFlow starts a resource on a job. Status defaults to
// resume-submitted.
func (s *CRMService) CreateProcessFlow(ctx context.Context, f models.ProcessFlow) (models.ProcessFlow, error) {
	if f.Status == "" {
		f.Status = pipeline.ResumeSubmitted
	}
	if !pipeline.Valid(f.Status) {
		return models.ProcessFlow{}, fmt.Errorf("%w: unknown status %q", e.ErrInvalidInput, f.Status)
	}
	if err := s.checkFlowRefs(f.JobID, f.ResourceID); err != nil {
		return models.ProcessFlow{}, err
	}

	created, err := s.repo.AddProcessFlow(ctx, f)
	if err != nil {
		return models.ProcessFlow{}, fmt.Errorf("failed to create process flow: %w", err)
	}
	s.producer.Produce(events.ProcessFlowCreated, created.ID, created)
	return created, nil
}

// UpdateProcessFlow patches a flow. A status change is published as
// ProcessStatusChanged instead of ProcessFlowUpdated.
func (s *CRMService) UpdateProcessFlow(ctx context.Context, id string, u models.ProcessFlowUpdate) (models.ProcessFlow, error) {
	current, err := s.repo.GetProcessFlow(id)
	if err != nil {
		return models.ProcessFlow{}, err
	}
	if u.Status != nil && !pipeline.Valid(*u.Status) {
		return models.ProcessFlow{}, fmt.Errorf("%w: unknown status %q", e.ErrInvalidInput, *u.Status)
	}
	if u.JobID != nil || u.ResourceID != nil {
		next := current
		u.Apply(&next)
		if err := s.checkFlowRefs(next.JobID, next.ResourceID); err != nil {
			return models.ProcessFlow{}, err
		}
	}

	updated, err := s.repo.UpdateProcessFlow(ctx, id, u)
	if err != nil {
		return models.ProcessFlow{}, wrap("update process flow", err)
	}

	if updated.Status != current.Status {
		s.logger.Info("Process status changed",
			zap.String("process_flow_id", id),
			zap.String("from", string(current.Status)),
			zap.String("to", string(updated.Status)),
			zap.String("updated_by", updated.UpdatedBy),
		)
		s.producer.Produce(events.ProcessStatusChanged, id, updated)
	} else {
		s.producer.Produce(events.ProcessFlowUpdated, id, updated)
	}
	return updated, nil
}

// UpdateProcessFlowStatus moves a flow to status on behalf of actor.
func (s *CRMService) UpdateProcessFlowStatus(ctx context.Context, id string, status pipeline.Status, notes, actor string) (models.ProcessFlow, error) {
	u := models.ProcessFlowUpdate{Status: &status}
	if notes != "" {
		u.Notes = &notes
	}
	if actor != "" {
		u.UpdatedBy = &actor
	}
	return s.UpdateProcessFlow(ctx, id, u)
}

func (s *CRMService) DeleteProcessFlow(ctx context.Context, id string) error {
	if err := s.repo.DeleteProcessFlow(ctx, id); err != nil {
		return wrap("delete process flow", err)
	}
	s.producer.Produce(events.ProcessFlowDeleted, id, nil)
	return nil
}

func (s *CRMService) GetProcessFlow(id string) (models.ProcessFlow, error) {
	return s.repo.GetProcessFlow(id)
}

// ListProcessFlows filters by status ("" or "all" keep everything).
func (s *CRMService) ListProcessFlows(status string, opts ListOptions) ([]models.ProcessFlow, error) {
	return sorted(search.ProcessFlowsByStatus(s.repo.ListProcessFlows(), status), search.ProcessFlowFields, opts)
}

// ProcessFlowHistory returns the status log of a flow, newest first.
func (s *CRMService) ProcessFlowHistory(id string) ([]pipeline.HistoryEntry, error) {
	return s.repo.ProcessFlowHistory(id)
}

// ProcessFlowsForResource returns the flows a resource takes part in.
func (s *CRMService) ProcessFlowsForResource(resourceID string) ([]models.ProcessFlow, error) {
	if _, err := s.repo.GetResource(resourceID); err != nil {
		return nil, wrap("get resource", err)
	}
	return s.flowsWhere(func(f models.ProcessFlow) bool { return f.ResourceID == resourceID }), nil
}

// ProcessFlowsForJob returns the flows opened against a job.
func (s *CRMService) ProcessFlowsForJob(jobID string) ([]models.ProcessFlow, error) {
	if _, err := s.repo.GetJobRequirement(jobID); err != nil {
		return nil, wrap("get job", err)
	}
	return s.flowsWhere(func(f models.ProcessFlow) bool { return f.JobID == jobID }), nil
}

func (s *CRMService) flowsWhere(match func(models.ProcessFlow) bool) []models.ProcessFlow {
	out := []models.ProcessFlow{}
	for _, f := range s.repo.ListProcessFlows() {
		if match(f) {
			out = append(out, f)
		}
	}
	return out
}
