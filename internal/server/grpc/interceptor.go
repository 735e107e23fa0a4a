package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// authorizationMetadataKey carries "Bearer <token>", like the HTTP header.
const authorizationMetadataKey = "authorization"

var publicMethodPrefixes = []string{
	"/grpc.health.v1.Health/",
}

func isPublic(fullMethod string) bool {
	for _, p := range publicMethodPrefixes {
		if strings.HasPrefix(fullMethod, p) {
			return true
		}
	}
	return false
}

var errUnauthenticated = status.Error(codes.Unauthenticated, "unauthenticated")

// authenticate returns ctx with the principal attached. Token failures all
// map to the same status; only the log keeps the distinction.
func (s *GRPCServer) authenticate(ctx context.Context, method string) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationMetadataKey); len(values) > 0 {
			header = values[0]
		}
	}
	token, ok := auth.BearerToken(header)
	if !ok {
		s.logger.Debug(ctx, "rejected", "reason", "missing bearer token", "method", method)
		return nil, errUnauthenticated
	}

	p, err := s.validator.Validate(ctx, token)
	if err != nil {
		if common.IsTokenError(err) {
			s.logger.Info(ctx, "rejected", "reason", err.Error(), "method", method)
			return nil, errUnauthenticated
		}
		s.logger.Error(ctx, "token validation", "error", err, "method", method)
		if errors.Is(err, common.ErrStorageUnavailable) {
			return nil, status.Error(codes.Unavailable, "service unavailable")
		}
		return nil, status.Error(codes.Internal, "internal error")
	}
	return auth.WithPrincipal(ctx, p), nil
}

func (s *GRPCServer) unaryAuthInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if isPublic(info.FullMethod) {
		return handler(ctx, req)
	}
	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type principalStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (p *principalStream) Context() context.Context { return p.ctx }

func (s *GRPCServer) streamAuthInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if isPublic(info.FullMethod) {
		return handler(srv, ss)
	}
	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &principalStream{ServerStream: ss, ctx: ctx})
}
