// ============================================================================
// shift-rota gRPC service
// ============================================================================
//
// Service rota.v1.RotaService fronts one controller. Messages are protobuf
// well-known types: empty requests are google.protobuf.Empty, every other
// request and response is a google.protobuf.BytesValue carrying the JSON
// form of the domain value. The service descriptor is written by hand so no
// generated stubs are needed.
//
// Methods:
//   Generate     Empty      -> GenerateResult
//   Move         Move       -> reassign.Result
//   GetSchedule  Empty      -> types.Schedule
//   GetCounts    Empty      -> worker -> position -> weeks
//   GetStatus    Empty      -> controller.Status
//   GetRoster    Empty      -> []Worker
//   SetRoster    []Worker   -> Empty
//   SetNeeds     NeedMatrix -> Empty
//   SetDays      int        -> Empty
//   Reset        Empty      -> Empty
//
// Error codes:
//   configuration errors, bad rosters, bad day counts -> InvalidArgument
//   no schedule yet                                   -> FailedPrecondition
//   stopped controller                                -> Unavailable
//   everything else                                   -> Internal
// ============================================================================

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ChuLiYu/shift-rota/internal/controller"
	"github.com/ChuLiYu/shift-rota/internal/reassign"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// ServiceName fully qualified gRPC service name
const ServiceName = "rota.v1.RotaService"

var log = slog.Default()

// RotaServiceServer the server side of rota.v1.RotaService
type RotaServiceServer interface {
	Generate(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	Move(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	GetSchedule(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	GetCounts(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	GetStatus(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	GetRoster(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	SetRoster(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	SetNeeds(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	SetDays(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// Server implements RotaServiceServer over a controller.
type Server struct {
	controller *controller.Controller
}

// NewServer creates a new gRPC server instance.
func NewServer(ctrl *controller.Controller) *Server {
	return &Server{controller: ctrl}
}

// Register adds the service to s.
func Register(s grpc.ServiceRegistrar, srv RotaServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NewGRPCServer returns a grpc.Server with the request logging interceptor
// and the rota service registered.
func NewGRPCServer(ctrl *controller.Controller, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(logRequests))
	gs := grpc.NewServer(opts...)
	Register(gs, NewServer(ctrl))
	return gs
}

// ============================================================================
// Handlers
// ============================================================================

// Generate builds and stores a new week.
func (s *Server) Generate(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	res, err := s.controller.Generate(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(res)
}

// Move applies one manual move. NoOp and Rejected come back as outcomes.
func (s *Server) Move(_ context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	var m reassign.Move
	if err := decode(req, &m); err != nil {
		return nil, err
	}
	res, err := s.controller.Move(m)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(res)
}

// GetSchedule returns the current schedule.
func (s *Server) GetSchedule(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	return encode(s.controller.Schedule())
}

// GetCounts returns the weeks-worked table.
func (s *Server) GetCounts(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	return encode(s.controller.Counts())
}

// GetStatus returns the controller summary.
func (s *Server) GetStatus(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	return encode(s.controller.GetStatus())
}

// GetRoster returns the roster.
func (s *Server) GetRoster(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	return encode(s.controller.Roster())
}

// SetRoster replaces the roster.
func (s *Server) SetRoster(_ context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	var roster []types.Worker
	if err := decode(req, &roster); err != nil {
		return nil, err
	}
	if err := s.controller.SetRoster(roster); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// SetNeeds replaces the need matrix.
func (s *Server) SetNeeds(_ context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	needs := types.NeedMatrix{}
	if err := decode(req, &needs); err != nil {
		return nil, err
	}
	if err := s.controller.SetNeeds(needs); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// SetDays sets the number of active days.
func (s *Server) SetDays(_ context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	var n int
	if err := decode(req, &n); err != nil {
		return nil, err
	}
	if err := s.controller.SetDaysPerWeek(n); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Reset clears the current schedule.
func (s *Server) Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.controller.Reset(); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ============================================================================
// Helpers
// ============================================================================

func encode(v any) (*wrapperspb.BytesValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return wrapperspb.Bytes(b), nil
}

func decode(req *wrapperspb.BytesValue, v any) error {
	if err := json.Unmarshal(req.GetValue(), v); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}

// toStatus maps controller errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrConfiguration),
		errors.Is(err, controller.ErrInvalidRoster),
		errors.Is(err, controller.ErrInvalidDays):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, controller.ErrNoSchedule):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, controller.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func logRequests(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Debug("RPC handled",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}

// ============================================================================
// Service descriptor
// ============================================================================

func unary(method string, newReq func() proto.Message, call func(RotaServiceServer, context.Context, proto.Message) (proto.Message, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(RotaServiceServer)
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(impl, ctx, req.(proto.Message))
			})
		},
	}
}

func newEmpty() proto.Message { return new(emptypb.Empty) }
func newBytes() proto.Message { return new(wrapperspb.BytesValue) }

// ServiceDesc the rota.v1.RotaService descriptor
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RotaServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Generate", newEmpty, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.Generate(ctx, in.(*emptypb.Empty))
		}),
		unary("Move", newBytes, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.Move(ctx, in.(*wrapperspb.BytesValue))
		}),
		unary("GetSchedule", newEmpty, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.GetSchedule(ctx, in.(*emptypb.Empty))
		}),
		unary("GetCounts", newEmpty, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.GetCounts(ctx, in.(*emptypb.Empty))
		}),
		unary("GetStatus", newEmpty, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.GetStatus(ctx, in.(*emptypb.Empty))
		}),
		unary("GetRoster", newEmpty, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.GetRoster(ctx, in.(*emptypb.Empty))
		}),
		unary("SetRoster", newBytes, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.SetRoster(ctx, in.(*wrapperspb.BytesValue))
		}),
		unary("SetNeeds", newBytes, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.SetNeeds(ctx, in.(*wrapperspb.BytesValue))
		}),
		unary("SetDays", newBytes, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.SetDays(ctx, in.(*wrapperspb.BytesValue))
		}),
		unary("Reset", newEmpty, func(s RotaServiceServer, ctx context.Context, in proto.Message) (proto.Message, error) {
			return s.Reset(ctx, in.(*emptypb.Empty))
		}),
	},
	Streams: []grpc.StreamDesc{},
}
