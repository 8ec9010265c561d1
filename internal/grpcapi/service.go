package grpcapi

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"appointment-scheduler/internal/booking"
	"appointment-scheduler/internal/metrics"
	"appointment-scheduler/internal/middleware"
	"appointment-scheduler/internal/store"
)

const (
	ServiceName = "booking.v1.BookingService"

	MethodBook            = "/" + ServiceName + "/Book"
	MethodListBookedSlots = "/" + ServiceName + "/ListBookedSlots"
	MethodClearSlots      = "/" + ServiceName + "/ClearSlots"
)

type BookingServiceServer interface {
	Book(context.Context, *BookRequest) (*BookResponse, error)
	ListBookedSlots(context.Context, *Empty) (*ListBookedSlotsResponse, error)
	ClearSlots(context.Context, *Empty) (*ClearSlotsResponse, error)
}

type Server struct {
	validator *booking.Validator
	slots     *booking.SlotQuery
	store     store.Store
	metrics   *metrics.Collector
	log       *zap.Logger
}

// New builds the service. m may be nil.
func New(v *booking.Validator, q *booking.SlotQuery, st store.Store, m *metrics.Collector, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{validator: v, slots: q, store: st, metrics: m, log: log}
}

func (s *Server) Book(ctx context.Context, req *BookRequest) (*BookResponse, error) {
	a, err := s.validator.Book(ctx, req.AppointmentTime, req.Details)
	if s.metrics != nil {
		s.metrics.ObserveBooking(err)
	}
	if err != nil {
		return nil, s.toStatus("book", err)
	}
	return &BookResponse{Appointment: appointmentFromModel(a)}, nil
}

func (s *Server) ListBookedSlots(ctx context.Context, _ *Empty) (*ListBookedSlotsResponse, error) {
	slots, err := s.slots.BookedSlots(ctx)
	if err != nil {
		return nil, s.toStatus("list booked slots", err)
	}
	return &ListBookedSlotsResponse{AppointmentTimes: slots}, nil
}

func (s *Server) ClearSlots(ctx context.Context, _ *Empty) (*ClearSlotsResponse, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return nil, s.toStatus("clear slots", err)
	}
	if s.metrics != nil {
		s.metrics.SlotsCleared.Add(float64(n))
	}
	s.log.Info("slots cleared", zap.Int64("deleted", n))
	return &ClearSlotsResponse{Deleted: n}, nil
}

// toStatus maps booking rejections to client errors and hides everything
// else behind codes.Internal.
func (s *Server) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		return status.Error(codes.AlreadyExists, err.Error())
	case booking.IsRejection(err):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.log.Error(op, zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

// ServiceDesc is what protoc-gen-go-grpc would emit for booking.proto.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Book", Handler: bookHandler},
		{MethodName: "ListBookedSlots", Handler: listBookedSlotsHandler},
		{MethodName: "ClearSlots", Handler: clearSlotsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/booking.proto",
}

func Register(srv *grpc.Server, s BookingServiceServer) {
	srv.RegisterService(&ServiceDesc, s)
}

func bookHandler(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
	in := new(BookRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if ic == nil {
		return srv.(BookingServiceServer).Book(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodBook}
	return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).Book(ctx, req.(*BookRequest))
	})
}

func listBookedSlotsHandler(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if ic == nil {
		return srv.(BookingServiceServer).ListBookedSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListBookedSlots}
	return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).ListBookedSlots(ctx, req.(*Empty))
	})
}

func clearSlotsHandler(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if ic == nil {
		return srv.(BookingServiceServer).ClearSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodClearSlots}
	return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).ClearSlots(ctx, req.(*Empty))
	})
}

// NewGRPCServer returns a grpc.Server with the booking service registered
// behind logging, rate limiting (Book) and admin auth (ClearSlots).
func NewGRPCServer(s *Server, rl *middleware.RateLimiter, adminSecret string, m *metrics.Collector, log *zap.Logger) *grpc.Server {
	if log == nil {
		log = zap.NewNop()
	}
	srv := grpc.NewServer(
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(
			middleware.Logging(log, m),
			middleware.RateLimit(rl, MethodBook),
			middleware.Admin(adminSecret, MethodClearSlots),
		),
	)
	Register(srv, s)
	return srv
}
