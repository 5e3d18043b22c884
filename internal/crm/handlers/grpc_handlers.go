package handlers

import (
	"context"

	"github.com/gartstein/staffing/internal/crm/auth"
	"github.com/gartstein/staffing/internal/crm/controller"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// CRMHandler provides the gRPC methods of the CRM, mapping requests to a
// CRMController.
type CRMHandler struct {
	service CRMController
	logger  *zap.Logger
}

// NewCRMHandler constructs a new CRMHandler with the given service and logger.
func NewCRMHandler(service CRMController, logger *zap.Logger) *CRMHandler {
	return &CRMHandler{
		service: service,
		logger:  logger.Named("grpc_handler"),
	}
}

var _ CRMServiceServer = (*CRMHandler)(nil)

// SearchAll runs the global search over {query}.
func (h *CRMHandler) SearchAll(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res := h.service.Search(stringField(req, "query"))
	return h.reply(searchResponse{Results: res, Total: res.Total()})
}

// SearchFiles filters files by {query} and an optional glob {pattern}.
func (h *CRMHandler) SearchFiles(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	files, err := h.service.ListFiles(controller.FileQuery{
		Text:    stringField(req, "query"),
		Pattern: stringField(req, "pattern"),
	}, controller.ListOptions{})
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.reply(map[string]any{"files": files})
}

// GetProcessFlowHistory returns the status history of flow {id}.
func (h *CRMHandler) GetProcessFlowHistory(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireField(req, "id")
	if err != nil {
		return nil, err
	}
	history, err := h.service.ProcessFlowHistory(id)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return h.reply(map[string]any{"history": history})
}

// UpdateProcessFlowStatus moves flow {id} to {status}, recording {notes} and
// the authenticated caller.
func (h *CRMHandler) UpdateProcessFlowStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireField(req, "id")
	if err != nil {
		return nil, err
	}
	raw, err := requireField(req, "status")
	if err != nil {
		return nil, err
	}
	st, err := pipeline.Parse(raw)
	if err != nil {
		return nil, badRequest("status", publicMessage(err))
	}

	flow, err := h.service.UpdateProcessFlowStatus(ctx, id, st, stringField(req, "notes"), auth.Actor(ctx))
	if err != nil {
		h.logger.Error("Update process flow status failed", zap.String("id", id), zap.Error(err))
		return nil, h.mapServiceError(err)
	}
	return h.reply(flow)
}

func (h *CRMHandler) reply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return out, nil
}
