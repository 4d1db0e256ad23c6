package grpc

import (
	"context"
	"strings"

	"cart-service/internal/auth"
	"cart-service/internal/service"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type AuthDeps interface {
	ParseAndValidateAccess(ctx context.Context, token string) (*auth.Claims, error)
}

var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.v1.ServerReflection/",
	"/grpc.reflection.v1alpha.ServerReflection/",
}

func NewAuthUnaryServerInterceptor(tokens AuthDeps) grpc.UnaryServerInterceptor {
	public := map[string]struct{}{
		fullMethod("GetStock"): {},
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		// Публичные методы: пропускаем без проверки
		if _, ok := public[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		for _, p := range publicPrefixes {
			if strings.HasPrefix(info.FullMethod, p) {
				return handler(ctx, req)
			}
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Errorf(codes.Unauthenticated, "missing metadata (method=%s)", info.FullMethod)
		}
		authz := getFirst(md, "authorization")
		if authz == "" {
			return nil, status.Errorf(codes.Unauthenticated, "authorization header not found (method=%s)", info.FullMethod)
		}
		prefix := "bearer "
		if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization scheme")
		}
		access := strings.TrimSpace(authz[len(prefix):])
		if access == "" {
			return nil, status.Error(codes.Unauthenticated, "empty bearer token")
		}

		claims, err := tokens.ParseAndValidateAccess(ctx, access)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid access token: %v", err)
		}

		// Положим идентичность в контекст
		ctx = service.WithIdentity(ctx, claims.Identity())
		return handler(ctx, req)
	}
}

func NewLoggingUnaryServerInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			st, _ := status.FromError(err)
			if st.Code() == codes.Internal {
				log.Error("grpc call failed", zap.String("method", info.FullMethod), zap.Error(err))
			} else {
				log.Debug("grpc call rejected", zap.String("method", info.FullMethod), zap.String("code", st.Code().String()))
			}
		}
		return resp, err
	}
}

func getFirst(md metadata.MD, key string) string {
	vals := md.Get(key)
	if len(vals) > 0 {
		return vals[0]
	}
	return ""
}
