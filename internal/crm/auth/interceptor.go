// Package auth issues and validates the JWTs of the CRM, and guards the
// HTTP routes and gRPC methods that change state.
package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ProtectedMethods are the gRPC methods that require a bearer token.
var ProtectedMethods = []string{
	"/crm.v1.CRMService/UpdateProcessFlowStatus",
}

// Interceptor authenticates calls to a fixed set of gRPC methods.
type Interceptor struct {
	secret    string
	protected map[string]struct{}
}

// NewAuthInterceptor guards ProtectedMethods plus any extra full method
// names.
func NewAuthInterceptor(jwtSecret string, extra ...string) *Interceptor {
	i := &Interceptor{secret: jwtSecret, protected: make(map[string]struct{})}
	for _, m := range append(append([]string{}, ProtectedMethods...), extra...) {
		i.protected[m] = struct{}{}
	}
	return i
}

// Unary validates the bearer token of protected calls and stores the
// caller in the handler's context.
func (i *Interceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := i.protected[info.FullMethod]; !ok {
			return handler(ctx, req)
		}
		p, err := i.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}

func (i *Interceptor) authenticate(ctx context.Context) (Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Principal{}, status.Error(codes.Unauthenticated, "metadata missing")
	}
	tokenString, err := extractTokenFromMetadata(md)
	if err != nil {
		return Principal{}, err
	}
	p, err := ValidateToken(tokenString, i.secret)
	if err != nil {
		return Principal{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return p, nil
}

func extractTokenFromMetadata(md metadata.MD) (string, error) {
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", status.Error(codes.Unauthenticated, "authorization header missing")
	}
	tokenString, ok := strings.CutPrefix(values[0], "Bearer ")
	switch {
	case !ok:
		return "", status.Error(codes.Unauthenticated, "invalid authorization format: missing Bearer prefix")
	case tokenString == "":
		return "", status.Error(codes.Unauthenticated, "invalid authorization format: empty token")
	}
	return tokenString, nil
}
