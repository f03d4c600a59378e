package grpc

import (
	"context"
	"errors"

	"go.uber.org/zap"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"authn-service/internal/adapter/grpc/middleware"
	"authn-service/internal/usecase/auth"
	apperrors "authn-service/pkg/errors"
	"authn-service/pkg/logger"
)

// Fully qualified names of the AuthService RPCs.
const (
	ServiceName        = "authn.v1.AuthService"
	RegisterFullMethod = "/" + ServiceName + "/Register"
	LoginFullMethod    = "/" + ServiceName + "/Login"
)

// RegisterRequest is the Register RPC input.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the Login RPC input.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserReply is the output of both RPCs.
type UserReply struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthServiceServer is the server API for AuthService.
type AuthServiceServer interface {
	Register(context.Context, *RegisterRequest) (*UserReply, error)
	Login(context.Context, *LoginRequest) (*UserReply, error)
}

// AuthServer implements the gRPC auth service
type AuthServer struct {
	svc auth.Service
	log *zap.Logger
}

// NewAuthServer creates a new gRPC auth service server
func NewAuthServer(svc auth.Service, log *zap.Logger) *AuthServer {
	return &AuthServer{svc: svc, log: log}
}

// Register handles gRPC Register request
func (s *AuthServer) Register(ctx context.Context, req *RegisterRequest) (*UserReply, error) {
	resp, err := s.svc.Register(ctx, auth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &UserReply{ID: resp.ID, Name: resp.Name, Email: resp.Email}, nil
}

// Login handles gRPC Login request
func (s *AuthServer) Login(ctx context.Context, req *LoginRequest) (*UserReply, error) {
	resp, err := s.svc.Login(ctx, auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &UserReply{ID: resp.ID, Name: resp.Name, Email: resp.Email}, nil
}

// toStatus converts a usecase error into a gRPC status without leaking
// internal detail.
func (s *AuthServer) toStatus(ctx context.Context, err error) error {
	var rateErr *apperrors.RateLimitedError
	if errors.As(err, &rateErr) {
		middleware.SetRetryAfter(ctx, rateErr)
	}

	var statuser apperrors.GRPCStatuser
	if errors.As(err, &statuser) {
		return statuser.GRPCStatus().Err()
	}

	logger.WithContext(ctx, s.log).Error("unexpected error reached transport", zap.Error(err))
	return status.Error(codes.Internal, "internal server error")
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpclib.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

func registerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).Register(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: RegisterFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServiceServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func loginHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(LoginRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).Login(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoginFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServiceServer).Login(ctx, req.(*LoginRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// AuthServiceDesc is the grpc.ServiceDesc for AuthService.
var AuthServiceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "Register", Handler: registerHandler},
		{MethodName: "Login", Handler: loginHandler},
	},
	Streams: []grpclib.StreamDesc{},
}

// AuthServiceClient calls AuthService using the JSON codec.
type AuthServiceClient struct {
	cc grpclib.ClientConnInterface
}

// NewAuthServiceClient creates a new AuthService client.
func NewAuthServiceClient(cc grpclib.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

// Register calls AuthService.Register.
func (c *AuthServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpclib.CallOption) (*UserReply, error) {
	out := new(UserReply)
	opts = append([]grpclib.CallOption{grpclib.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, RegisterFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Login calls AuthService.Login.
func (c *AuthServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpclib.CallOption) (*UserReply, error) {
	out := new(UserReply)
	opts = append([]grpclib.CallOption{grpclib.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, LoginFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
