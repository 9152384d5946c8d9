package grpcserver

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"songrate/internal/auth"
	"songrate/internal/rounds"
	"songrate/pkg/models"
)

type RoundReader interface {
	ListRounds(ctx context.Context, caller rounds.Caller, now time.Time) ([]models.RoundSummary, error)
	GetRound(ctx context.Context, caller rounds.Caller, id string, now time.Time) (*models.RoundView, error)
}

// Server answers read-only round queries. With Tokens set callers must send
// a bearer token; otherwise the x-rate-user metadata is trusted as is.
// Versions, when set, rejects tokens revoked by logout or a password change.
type Server struct {
	Rounds   RoundReader
	Tokens   *auth.TokenService
	Versions auth.VersionSource
	Now      func() time.Time
}

func NewServer(r RoundReader, tokens *auth.TokenService) *Server {
	return &Server{Rounds: r, Tokens: tokens, Now: time.Now}
}

// NewGRPCServer builds a grpc.Server speaking the JSON codec with the round
// service registered.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(Codec{}),
		grpc.UnaryInterceptor(logUnary),
	}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterRoundServiceServer(gs, srv)
	return gs
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("[grpc] %s %s in %s", info.FullMethod, status.Code(err), time.Since(start).Round(time.Microsecond))
	return resp, err
}

func (s *Server) caller(ctx context.Context) (rounds.Caller, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	if s.Tokens != nil {
		var raw string
		ok := false
		if vals := md.Get(authorizationKey); len(vals) > 0 {
			raw, ok = auth.BearerToken(vals[0])
		}
		if !ok {
			return rounds.Caller{}, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		claims, err := auth.Verify(ctx, *s.Tokens, s.Versions, raw)
		if err != nil {
			return rounds.Caller{}, status.Error(codes.Unauthenticated, "invalid token")
		}
		return rounds.Caller{Name: claims.Username, IsAdmin: claims.IsAdmin}, nil
	}

	vals := md.Get(UserMetadataKey)
	if len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
		return rounds.Caller{}, status.Error(codes.Unauthenticated, UserMetadataKey+" required")
	}
	return rounds.Caller{Name: strings.TrimSpace(vals[0])}, nil
}

func (s *Server) ListRounds(ctx context.Context, _ *ListRoundsRequest) (*ListRoundsResponse, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.Rounds.ListRounds(ctx, caller, s.Now())
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListRoundsResponse{Items: items}, nil
}

func (s *Server) GetRound(ctx context.Context, req *GetRoundRequest) (*GetRoundResponse, error) {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.Rounds.GetRound(ctx, caller, strings.TrimSpace(req.ID), s.Now())
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetRoundResponse{Round: view}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, rounds.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, rounds.ErrForbidden), errors.Is(err, rounds.ErrNotSubmitter):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, rounds.ErrWrongStage), errors.Is(err, rounds.ErrNotComplete):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, rounds.ErrInvalidRound), errors.Is(err, rounds.ErrInvalidLink):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		log.Printf("[grpc] internal: %v", err)
		return status.Error(codes.Internal, "internal error")
	}
}
