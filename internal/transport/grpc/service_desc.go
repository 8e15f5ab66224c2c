package grpc

import (
	"context"

	grpclib "google.golang.org/grpc"
)

const serviceName = "clinicdesk.v1.AppointmentsService"

// Full method names, as seen by interceptors.
const (
	CreateAppointmentMethod       = "/" + serviceName + "/CreateAppointment"
	GetAppointmentMethod          = "/" + serviceName + "/GetAppointment"
	ListAppointmentsMethod        = "/" + serviceName + "/ListAppointments"
	UpdateAppointmentStatusMethod = "/" + serviceName + "/UpdateAppointmentStatus"
	DeleteAppointmentMethod       = "/" + serviceName + "/DeleteAppointment"
)

type AppointmentsServiceServer interface {
	CreateAppointment(context.Context, *CreateAppointmentRequest) (*CreateAppointmentResponse, error)
	GetAppointment(context.Context, *GetAppointmentRequest) (*GetAppointmentResponse, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	UpdateAppointmentStatus(context.Context, *UpdateAppointmentStatusRequest) (*UpdateAppointmentStatusResponse, error)
	DeleteAppointment(context.Context, *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error)
}

func RegisterAppointmentsServiceServer(s grpclib.ServiceRegistrar, srv AppointmentsServiceServer) {
	s.RegisterService(&AppointmentsServiceDesc, srv)
}

// unaryHandler adapts a typed method to the handler signature of
// grpc.MethodDesc, whose named type is unexported.
func unaryHandler[Req any, Resp any](fullMethod string, call func(AppointmentsServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AppointmentsServiceServer), ctx, in)
		}
		info := &grpclib.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AppointmentsServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AppointmentsServiceDesc = grpclib.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AppointmentsServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{
			MethodName: "CreateAppointment",
			Handler:    unaryHandler(CreateAppointmentMethod, AppointmentsServiceServer.CreateAppointment),
		},
		{
			MethodName: "GetAppointment",
			Handler:    unaryHandler(GetAppointmentMethod, AppointmentsServiceServer.GetAppointment),
		},
		{
			MethodName: "ListAppointments",
			Handler:    unaryHandler(ListAppointmentsMethod, AppointmentsServiceServer.ListAppointments),
		},
		{
			MethodName: "UpdateAppointmentStatus",
			Handler:    unaryHandler(UpdateAppointmentStatusMethod, AppointmentsServiceServer.UpdateAppointmentStatus),
		},
		{
			MethodName: "DeleteAppointment",
			Handler:    unaryHandler(DeleteAppointmentMethod, AppointmentsServiceServer.DeleteAppointment),
		},
	},
	Streams: []grpclib.StreamDesc{},
}
