package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"songrate/pkg/models"
)

const (
	serviceName      = "rate.RoundService"
	methodListRounds = "/" + serviceName + "/ListRounds"
	methodGetRound   = "/" + serviceName + "/GetRound"
	UserMetadataKey  = "x-rate-user"
	authorizationKey = "authorization"
)

type ListRoundsRequest struct{}

type ListRoundsResponse struct {
	Items []models.RoundSummary `json:"items"`
}

type GetRoundRequest struct {
	ID string `json:"id"`
}

type GetRoundResponse struct {
	Round *models.RoundView `json:"round"`
}

type RoundServiceServer interface {
	ListRounds(context.Context, *ListRoundsRequest) (*ListRoundsResponse, error)
	GetRound(context.Context, *GetRoundRequest) (*GetRoundResponse, error)
}

var roundServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RoundServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRounds", Handler: listRoundsHandler},
		{MethodName: "GetRound", Handler: getRoundHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rate/rounds",
}

func RegisterRoundServiceServer(s grpc.ServiceRegistrar, srv RoundServiceServer) {
	s.RegisterService(&roundServiceDesc, srv)
}

func listRoundsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListRoundsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoundServiceServer).ListRounds(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListRounds}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoundServiceServer).ListRounds(ctx, req.(*ListRoundsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getRoundHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetRoundRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoundServiceServer).GetRound(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetRound}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoundServiceServer).GetRound(ctx, req.(*GetRoundRequest))
	}
	return interceptor(ctx, in, info, handler)
}
