package server

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/patient-docs/constants"
	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/entity"
	"github.com/joseph-ayodele/patient-docs/internal/extract"
	"github.com/joseph-ayodele/patient-docs/internal/llm"
	"github.com/joseph-ayodele/patient-docs/internal/pipeline"
	"github.com/joseph-ayodele/patient-docs/internal/render"
)

const (
	DocumentServiceName = "patientdoc.v1.DocumentService"

	// PasswordMetadataKey carries the shared secret on every DocumentService call.
	PasswordMetadataKey  = "x-patientdoc-password"
	RequestIDMetadataKey = "x-request-id"
)

// Pipeline is what the gRPC surface needs from the processor.
type Pipeline interface {
	Extract(ctx context.Context, text string) (entity.PatientRecord, error)
	Render(ctx context.Context, rec entity.PatientRecord) (render.Document, error)
	Generate(ctx context.Context, text string) (pipeline.Result, error)
}

// DocumentServiceServer is the server API for patientdoc.v1.DocumentService.
// Messages are protobuf well-known types so no generated code is needed.
type DocumentServiceServer interface {
	Extract(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Render(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Generate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

func RegisterDocumentServiceServer(s grpc.ServiceRegistrar, srv DocumentServiceServer) {
	s.RegisterService(&documentServiceDesc, srv)
}

var documentServiceDesc = grpc.ServiceDesc{
	ServiceName: DocumentServiceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
		{MethodName: "Render", Handler: renderHandler},
		{MethodName: "Generate", Handler: generateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "patientdoc/v1/document.proto",
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServiceServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + DocumentServiceName + "/Extract"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentServiceServer).Extract(ctx, req.(*wrapperspb.StringValue))
	})
}

func renderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServiceServer).Render(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + DocumentServiceName + "/Render"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentServiceServer).Render(ctx, req.(*structpb.Struct))
	})
}

func generateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServiceServer).Generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + DocumentServiceName + "/Generate"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentServiceServer).Generate(ctx, req.(*wrapperspb.StringValue))
	})
}

// DocumentServiceClient calls patientdoc.v1.DocumentService.
type DocumentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDocumentServiceClient(cc grpc.ClientConnInterface) *DocumentServiceClient {
	return &DocumentServiceClient{cc: cc}
}

func (c *DocumentServiceClient) Extract(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+DocumentServiceName+"/Extract", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DocumentServiceClient) Render(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+DocumentServiceName+"/Render", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DocumentServiceClient) Generate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+DocumentServiceName+"/Generate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// DocumentService implements DocumentServiceServer on top of the processor.
type DocumentService struct {
	pipe   Pipeline
	logger *slog.Logger
}

var _ DocumentServiceServer = (*DocumentService)(nil)

func NewDocumentService(pipe Pipeline, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{pipe: pipe, logger: logger}
}

func (s *DocumentService) Extract(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := validateText(in.GetValue()); err != nil {
		return nil, err
	}
	rec, err := s.pipe.Extract(ctx, in.GetValue())
	if err != nil {
		s.logger.Error("grpc.extract.failed", "req_id", common.RequestIDFromContext(ctx), "err", err)
		return nil, toStatus(err)
	}
	return structpb.NewStruct(recordMap(rec))
}

// Render fills the template with a record given as a JSON-like struct. Values are
// normalized the same way model output is, so partial records are accepted.
func (s *DocumentService) Render(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if len(in.GetFields()) == 0 {
		return nil, common.InvalidArgumentError("record is required")
	}
	rec, notes := llm.NormalizeFields(in.AsMap(), s.logger)
	if len(notes) > 0 {
		s.logger.Debug("grpc.render.normalized", "req_id", common.RequestIDFromContext(ctx), "notes", notes)
	}
	doc, err := s.pipe.Render(ctx, rec)
	if err != nil {
		s.logger.Error("grpc.render.failed", "req_id", common.RequestIDFromContext(ctx), "err", err)
		return nil, toStatus(err)
	}
	return structpb.NewStruct(documentMap(doc))
}

func (s *DocumentService) Generate(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := validateText(in.GetValue()); err != nil {
		return nil, err
	}
	res, err := s.pipe.Generate(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	out := documentMap(res.Document)
	out["record"] = recordMap(res.Record)
	out["request_id"] = res.RequestID
	return structpb.NewStruct(out)
}

func validateText(text string) error {
	return common.ValidateAndReturnError(common.NewValidator().Field("text", text, maxRunes(maxInputRunes)))
}

func recordMap(rec entity.PatientRecord) map[string]any {
	out := make(map[string]any, len(entity.PatientFields))
	for k, v := range rec.Placeholders() {
		out[k] = v
	}
	return out
}

func documentMap(doc render.Document) map[string]any {
	return map[string]any{
		"filename":  doc.Filename,
		"mime_type": doc.MIMEType,
		"document":  base64.StdEncoding.EncodeToString(doc.Bytes),
	}
}

// toStatus maps pipeline failures to gRPC status errors. The message starts with the
// error category when there is one.
func toStatus(err error) error {
	if errors.Is(err, pipeline.ErrEmptyInput) {
		return common.InvalidArgumentError(err.Error())
	}
	var re *render.Error
	if errors.As(err, &re) {
		return common.FailedPreconditionError(re.Error())
	}
	var xe *extract.Error
	if errors.As(err, &xe) {
		if xe.Category == constants.ErrServiceFailure {
			return common.UnavailableError(xe.Error())
		}
		return common.InternalError(xe.Error())
	}
	return common.InternalErrorf("generate: %v", err)
}

// PasswordInterceptor rejects DocumentService calls that lack the shared secret.
// Health checks pass through.
func PasswordInterceptor(password string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		vals := md.Get(PasswordMetadataKey)
		if len(vals) == 0 || subtle.ConstantTimeCompare([]byte(vals[0]), []byte(password)) != 1 {
			return nil, common.UnauthenticatedError("missing or invalid password")
		}
		return handler(ctx, req)
	}
}

// LoggingInterceptor assigns a request id (from metadata when present) and logs each call.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
				rid = vals[0]
			}
		}
		if rid == "" {
			rid = uuid.New().String()
		}
		ctx = common.WithRequestID(ctx, rid)

		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{"method", info.FullMethod, "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("grpc.call.failed", append(attrs, "err", err)...)
		} else {
			logger.Info("grpc.call.ok", attrs...)
		}
		return resp, err
	}
}

// NewGRPCServer builds a server exposing DocumentService and the standard health service.
func NewGRPCServer(svc DocumentServiceServer, password string, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(logger),
		PasswordInterceptor(password),
	))
	RegisterDocumentServiceServer(gs, svc)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(DocumentServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return gs, hs
}

