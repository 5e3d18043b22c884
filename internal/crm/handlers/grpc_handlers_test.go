package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gartstein/staffing/internal/crm/auth"
	"github.com/gartstein/staffing/internal/crm/controller"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type grpcFixture struct {
	client *CRMServiceClient
	conn   *grpc.ClientConn
	svc    *controller.CRMService
	token  string
}

func newGRPCFixture(t *testing.T) *grpcFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	svc, _ := newService(t)

	lis := bufconn.Listen(1 << 20)
	s := NewServer(0, 0, logger, grpc.UnaryInterceptor(auth.NewAuthInterceptor(testSecret).Unary()))
	s.RegisterGRPCHandler(NewCRMHandler(svc, logger))
	go func() { _ = s.grpcServer.Serve(lis) }()
	t.Cleanup(s.grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	token, err := auth.GenerateToken(auth.DefaultUsers()[1], testSecret, time.Now())
	require.NoError(t, err)

	return &grpcFixture{client: NewCRMServiceClient(conn), conn: conn, svc: svc, token: token}
}

func (f *grpcFixture) authed(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+f.token)
}

func args(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func (f *grpcFixture) seedFlow(t *testing.T) models.ProcessFlow {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.CreateResource(ctx, models.Resource{Name: "Ann", Email: "ann@x.test"})
	require.NoError(t, err)
	job, err := f.svc.CreateJobRequirement(ctx, models.JobRequirement{Title: "Go Engineer", Description: "backend"})
	require.NoError(t, err)
	flow, err := f.svc.CreateProcessFlow(ctx, models.ProcessFlow{JobID: job.ID, ResourceID: res.ID})
	require.NoError(t, err)
	return flow
}

func TestCRMHandler_SearchAll(t *testing.T) {
	f := newGRPCFixture(t)
	_, err := f.svc.CreateVendor(context.Background(), models.Vendor{Name: "Acme", Company: "Acme Ltd", Email: "hr@acme.test"})
	require.NoError(t, err)

	resp, err := f.client.SearchAll(context.Background(), args(t, map[string]any{"query": "acme"}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), resp.GetFields()["total"].GetNumberValue())
	vendors := resp.GetFields()["vendors"].GetListValue().GetValues()
	require.Len(t, vendors, 1)
	assert.Equal(t, "Acme", vendors[0].GetStructValue().GetFields()["name"].GetStringValue())
}

func TestCRMHandler_SearchFiles(t *testing.T) {
	f := newGRPCFixture(t)
	_, err := f.svc.UploadFile(context.Background(), upload.Request{
		Filename: "brief.pdf", ContentType: upload.TypePDF, Size: 5, Body: strings.NewReader("%PDF-"),
	}, controller.FileDetails{Name: "Client brief"})
	require.NoError(t, err)

	resp, err := f.client.SearchFiles(context.Background(), args(t, map[string]any{"query": "client"}))
	require.NoError(t, err)
	assert.Len(t, resp.GetFields()["files"].GetListValue().GetValues(), 1)

	_, err = f.client.SearchFiles(context.Background(), args(t, map[string]any{"pattern": "[unclosed"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCRMHandler_UpdateProcessFlowStatus(t *testing.T) {
	f := newGRPCFixture(t)
	flow := f.seedFlow(t)

	tests := []struct {
		name     string
		ctx      context.Context
		fields   map[string]any
		wantCode codes.Code
	}{
		{"no token", context.Background(), map[string]any{"id": flow.ID, "status": "cleared"}, codes.Unauthenticated},
		{"missing id", f.authed(context.Background()), map[string]any{"status": "cleared"}, codes.InvalidArgument},
		{"unknown status", f.authed(context.Background()), map[string]any{"id": flow.ID, "status": "hired"}, codes.InvalidArgument},
		{"unknown flow", f.authed(context.Background()), map[string]any{"id": "nope", "status": "cleared"}, codes.NotFound},
		{"ok", f.authed(context.Background()), map[string]any{"id": flow.ID, "status": "screening-scheduled", "notes": "panel"}, codes.OK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.client.UpdateProcessFlowStatus(tt.ctx, args(t, tt.fields))
			if tt.wantCode != codes.OK {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, status.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "screening-scheduled", resp.GetFields()["status"].GetStringValue())
			assert.Equal(t, "user", resp.GetFields()["updatedBy"].GetStringValue())
		})
	}

	hist, err := f.client.GetProcessFlowHistory(context.Background(), args(t, map[string]any{"id": flow.ID}))
	require.NoError(t, err)
	entries := hist.GetFields()["history"].GetListValue().GetValues()
	require.NotEmpty(t, entries)
	latest := entries[0].GetStructValue().GetFields()
	assert.Equal(t, "screening-scheduled", latest["status"].GetStringValue())
	assert.Equal(t, "panel", latest["notes"].GetStringValue())
	assert.Equal(t, "user", latest["updatedBy"].GetStringValue())
}

func TestCRMHandler_Health(t *testing.T) {
	f := newGRPCFixture(t)
	resp, err := grpc_health_v1.NewHealthClient(f.conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestMapServiceError(t *testing.T) {
	h := NewCRMHandler(nil, zaptest.NewLogger(t))

	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("flow x: %w", e.ErrNotFound), codes.NotFound},
		{fmt.Errorf("%w: name is required", e.ErrInvalidInput), codes.InvalidArgument},
		{e.ErrFileTooLarge, codes.InvalidArgument},
		{e.ErrUnauthenticated, codes.Unauthenticated},
		{e.ErrInvalidTransition, codes.FailedPrecondition},
		{e.ErrReferenceViolation, codes.FailedPrecondition},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(h.mapServiceError(tt.err)), tt.err.Error())
	}

	st := status.Convert(h.mapServiceError(fmt.Errorf("%w: name is required", e.ErrInvalidInput)))
	assert.Equal(t, "name is required", st.Message())
	require.Len(t, st.Details(), 1)
	br, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	assert.Equal(t, "name is required", br.GetFieldViolations()[0].GetDescription())

	assert.Equal(t, "internal server error", status.Convert(h.mapServiceError(errors.New("secret"))).Message())
}

func TestToStruct(t *testing.T) {
	s, err := toStruct(models.FileCategory{ID: "c1", Name: "Contracts"})
	require.NoError(t, err)
	assert.Equal(t, "Contracts", s.GetFields()["name"].GetStringValue())

	_, err = toStruct([]string{"not", "an", "object"})
	assert.Error(t, err)
}
