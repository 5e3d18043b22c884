package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	e "github.com/gartstein/staffing/internal/crm/errors"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts any JSON-encodable object into a protobuf Struct using
// the same field names as the REST API.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("failed to convert response: %w", err)
	}
	return out, nil
}

// stringField reads a string field of req, "" when absent or not a string.
func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[name].GetStringValue()
}

// requireField returns an InvalidArgument status naming the missing field.
func requireField(req *structpb.Struct, name string) (string, error) {
	v := stringField(req, name)
	if v == "" {
		return "", badRequest(name, name+" is required")
	}
	return v, nil
}

func badRequest(field, desc string) error {
	st := status.New(codes.InvalidArgument, desc)
	detailed, err := st.WithDetails(&errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{{Field: field, Description: desc}},
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

func failedPrecondition(kind, desc string) error {
	st := status.New(codes.FailedPrecondition, desc)
	detailed, err := st.WithDetails(&errdetails.PreconditionFailure{
		Violations: []*errdetails.PreconditionFailure_Violation{{Type: kind, Description: desc}},
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// mapServiceError maps domain errors to gRPC status codes.
func (h *CRMHandler) mapServiceError(err error) error {
	msg := publicMessage(err)
	switch {
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, e.ErrInvalidInput),
		errors.Is(err, e.ErrFileTooLarge),
		errors.Is(err, e.ErrUnsupportedType):
		return badRequest("request", msg)
	case errors.Is(err, e.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, msg)
	case errors.Is(err, e.ErrInvalidTransition):
		return failedPrecondition("TRANSITION", msg)
	case errors.Is(err, e.ErrReferenceViolation):
		return failedPrecondition("REFERENCE", msg)
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}
}
