package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/receptro/internal/common"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
)

// PipelineServiceName is the fully qualified gRPC service name.
const PipelineServiceName = "receptro.v1.Pipeline"

// PipelineServer is the gRPC surface. Requests and responses are
// google.protobuf.Struct messages carrying the JSON record shapes.
//
//	Process     {path, wait?}                                  -> record | {id, status, input_file}
//	GetResult   {id}                                           -> record | {id, status, input_file}
//	ListResults {kind?, status?, intent?, since?, limit?, offset?} -> {results, count}
//	IngestDirectory {root, skip_hidden?}                       -> {root, stats, results}
type PipelineServer interface {
	Process(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetResult(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListResults(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type pipelineCall func(PipelineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call pipelineCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PipelineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + PipelineServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PipelineServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PipelineServiceDesc registers a PipelineServer on a grpc.Server.
var PipelineServiceDesc = grpc.ServiceDesc{
	ServiceName: PipelineServiceName,
	HandlerType: (*PipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Process", Handler: unaryHandler("Process", PipelineServer.Process)},
		{MethodName: "GetResult", Handler: unaryHandler("GetResult", PipelineServer.GetResult)},
		{MethodName: "ListResults", Handler: unaryHandler("ListResults", PipelineServer.ListResults)},
		{MethodName: "IngestDirectory", Handler: unaryHandler("IngestDirectory", PipelineServer.IngestDirectory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "receptro/v1/pipeline.proto",
}

func RegisterPipelineServer(s grpc.ServiceRegistrar, srv PipelineServer) {
	s.RegisterService(&PipelineServiceDesc, srv)
}

// PipelineClient calls a remote PipelineServer.
type PipelineClient struct {
	cc grpc.ClientConnInterface
}

func NewPipelineClient(cc grpc.ClientConnInterface) *PipelineClient {
	return &PipelineClient{cc: cc}
}

func (c *PipelineClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+PipelineServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PipelineClient) Process(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Process", in, opts...)
}

func (c *PipelineClient) GetResult(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetResult", in, opts...)
}

func (c *PipelineClient) ListResults(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListResults", in, opts...)
}

func (c *PipelineClient) IngestDirectory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "IngestDirectory", in, opts...)
}

// PipelineService implements PipelineServer on top of Service.
type PipelineService struct {
	svc    *Service
	logger *slog.Logger
}

func NewPipelineService(svc *Service, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{svc: svc, logger: logger}
}

func (p *PipelineService) Process(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := stringField(req, "path")
	if path == "" {
		return nil, common.InvalidArgumentError("path is required")
	}
	if boolField(req, "wait") {
		rec, err := p.svc.Process(ctx, path)
		if err != nil {
			return nil, p.toStatus(ctx, "Process", err)
		}
		return recordStruct(rec)
	}
	st, err := p.svc.Submit(ctx, path, "grpc")
	if err != nil {
		return nil, p.toStatus(ctx, "Process", err)
	}
	return toStruct(st)
}

func (p *PipelineService) GetResult(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if id == "" {
		return nil, common.InvalidArgumentError("id is required")
	}
	rec, st, err := p.svc.Lookup(ctx, id)
	if err != nil {
		return nil, p.toStatus(ctx, "GetResult", err)
	}
	if rec != nil {
		return recordStruct(*rec)
	}
	return toStruct(st)
}

func (p *PipelineService) ListResults(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := ParseFilter(FilterParams{
		Kind:   stringField(req, "kind"),
		Status: stringField(req, "status"),
		Intent: stringField(req, "intent"),
		Since:  stringField(req, "since"),
		Limit:  numberField(req, "limit"),
		Offset: numberField(req, "offset"),
	})
	if err != nil {
		return nil, p.toStatus(ctx, "ListResults", err)
	}
	recs, err := p.svc.List(ctx, f)
	if err != nil {
		return nil, p.toStatus(ctx, "ListResults", err)
	}
	items, err := recordMaps(recs)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return toStruct(map[string]any{"results": items, "count": len(items)})
}

func recordStruct(rec pipeline.Record) (*structpb.Struct, error) {
	m, err := recordMap(rec)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return toStruct(m)
}

func (p *PipelineService) toStatus(ctx context.Context, method string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch common.Code(err) {
	case codes.InvalidArgument:
		return common.InvalidArgumentError(err.Error())
	case codes.NotFound:
		return common.NotFoundError(err.Error())
	case codes.Unavailable:
		return common.UnavailableError(err.Error())
	}
	common.LoggerFromContext(ctx, p.logger).Error("grpc call failed", "method", method, "error", err)
	return common.InternalError(method + " failed")
}

// toStruct converts any JSON-marshalable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return s, nil
}

func stringField(s *structpb.Struct, key string) string {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func boolField(s *structpb.Struct, key string) bool {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetBoolValue()
	}
	return false
}

// numberField renders a numeric (or numeric string) field for ParseFilter.
func numberField(s *structpb.Struct, key string) string {
	v, ok := s.GetFields()[key]
	if !ok {
		return ""
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); isNum {
		return fmt.Sprintf("%d", int64(v.GetNumberValue()))
	}
	return v.GetStringValue()
}

// GRPC bundles the gRPC server with its health service.
type GRPC struct {
	Server *grpc.Server
	Health *health.Server
}

// NewGRPC builds a server with the pipeline, health and reflection services.
func NewGRPC(svc *Service, logger *slog.Logger) *GRPC {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(logger)))
	RegisterPipelineServer(srv, NewPipelineService(svc, logger))

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(PipelineServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(srv)
	return &GRPC{Server: srv, Health: hs}
}

// Stop marks the server NOT_SERVING and drains in-flight calls.
func (g *GRPC) Stop() {
	g.Health.Shutdown()
	g.Server.GracefulStop()
}

func unaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := uuid.NewString()
		ctx = common.WithRequestID(ctx, reqID)
		ctx = common.WithLogger(ctx, logger.With("request_id", reqID))
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc.call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start), "request_id", reqID)
		return resp, err
	}
}
