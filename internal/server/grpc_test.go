package server

import (
	"context"
	"encoding/base64"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/patient-docs/constants"
	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/entity"
	"github.com/joseph-ayodele/patient-docs/internal/extract"
	"github.com/joseph-ayodele/patient-docs/internal/pipeline"
	"github.com/joseph-ayodele/patient-docs/internal/render"
)

var _ Pipeline = (*MockPipeline)(nil)

type MockPipeline struct {
	ExtractFunc  func(ctx context.Context, text string) (entity.PatientRecord, error)
	RenderFunc   func(ctx context.Context, rec entity.PatientRecord) (render.Document, error)
	GenerateFunc func(ctx context.Context, text string) (pipeline.Result, error)
}

func (m *MockPipeline) Extract(ctx context.Context, text string) (entity.PatientRecord, error) {
	return m.ExtractFunc(ctx, text)
}

func (m *MockPipeline) Render(ctx context.Context, rec entity.PatientRecord) (render.Document, error) {
	return m.RenderFunc(ctx, rec)
}

func (m *MockPipeline) Generate(ctx context.Context, text string) (pipeline.Result, error) {
	return m.GenerateFunc(ctx, text)
}

func dialBufconn(t *testing.T, pipe Pipeline) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(NewDocumentService(pipe, nil), "letmein", nil)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func authed(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, PasswordMetadataKey, "letmein", RequestIDMetadataKey, "rid-42")
}

func TestGRPC_RequiresPassword(t *testing.T) {
	conn := dialBufconn(t, &MockPipeline{})
	client := NewDocumentServiceClient(conn)

	_, err := client.Extract(context.Background(), wrapperspb.String("x"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), PasswordMetadataKey, "nope")
	_, err = client.Extract(ctx, wrapperspb.String("x"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: DocumentServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPC_Extract(t *testing.T) {
	pipe := &MockPipeline{ExtractFunc: func(ctx context.Context, text string) (entity.PatientRecord, error) {
		assert.Equal(t, "rid-42", common.RequestIDFromContext(ctx))
		assert.Equal(t, "ידידיה בן 40", text)
		return entity.PatientRecord{Name: "ידידיה", Age: "40"}, nil
	}}
	client := NewDocumentServiceClient(dialBufconn(t, pipe))

	out, err := client.Extract(authed(context.Background()), wrapperspb.String("ידידיה בן 40"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":              "ידידיה",
		"age":               "40",
		"kupat_cholim":      "",
		"symptoms":          "",
		"ai_recommondation": "",
	}, out.AsMap())
}

func TestGRPC_RenderNormalizesRecord(t *testing.T) {
	pipe := &MockPipeline{RenderFunc: func(_ context.Context, rec entity.PatientRecord) (render.Document, error) {
		assert.Equal(t, entity.PatientRecord{Name: "Dana", Age: "31"}, rec)
		return render.Document{Bytes: []byte("doc"), Filename: "Dana_document.docx", MIMEType: constants.DOCX.MIMEType()}, nil
	}}
	client := NewDocumentServiceClient(dialBufconn(t, pipe))

	in, err := structpb.NewStruct(map[string]any{"name": "Dana", "age": 31})
	require.NoError(t, err)
	out, err := client.Render(authed(context.Background()), in)
	require.NoError(t, err)

	fields := out.GetFields()
	assert.Equal(t, "Dana_document.docx", fields["filename"].GetStringValue())
	assert.Equal(t, constants.DOCX.MIMEType(), fields["mime_type"].GetStringValue())
	b, err := base64.StdEncoding.DecodeString(fields["document"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, "doc", string(b))

	_, err = client.Render(authed(context.Background()), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_Generate(t *testing.T) {
	pipe := &MockPipeline{GenerateFunc: func(context.Context, string) (pipeline.Result, error) {
		return okResult("Yedidya"), nil
	}}
	client := NewDocumentServiceClient(dialBufconn(t, pipe))

	out, err := client.Generate(authed(context.Background()), wrapperspb.String("x"))
	require.NoError(t, err)
	fields := out.GetFields()
	assert.Equal(t, "Yedidya_document.docx", fields["filename"].GetStringValue())
	assert.Equal(t, "rid", fields["request_id"].GetStringValue())
	assert.Equal(t, "Yedidya", fields["record"].GetStructValue().GetFields()["name"].GetStringValue())
}

func TestGRPC_ErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode codes.Code
		wantMsg  string
	}{
		{"empty input", pipeline.ErrEmptyInput, codes.InvalidArgument, "please enter"},
		{"service failure", &extract.Error{Category: constants.ErrServiceFailure, Detail: "timeout"}, codes.Unavailable, "SERVICE_FAILURE: timeout"},
		{"parse failure", &extract.Error{Category: constants.ErrParseFailure, Detail: "bad"}, codes.Internal, "PARSE_FAILURE: bad"},
		{"empty response", &extract.Error{Category: constants.ErrEmptyResponse, Detail: "empty"}, codes.Internal, "EMPTY_RESPONSE"},
		{"template error", &render.Error{Category: constants.ErrTemplateError, Detail: "missing"}, codes.FailedPrecondition, "TEMPLATE_ERROR: missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipe := &MockPipeline{GenerateFunc: func(context.Context, string) (pipeline.Result, error) {
				return pipeline.Result{}, tt.err
			}}
			client := NewDocumentServiceClient(dialBufconn(t, pipe))

			_, err := client.Generate(authed(context.Background()), wrapperspb.String("x"))
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Contains(t, st.Message(), tt.wantMsg)
		})
	}
}
