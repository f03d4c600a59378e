package auth

import "context"

// Service defines the authentication operations exposed to transports.
type Service interface {
	Register(ctx context.Context, in RegisterRequest) (*UserResponse, error)
	Login(ctx context.Context, in LoginRequest) (*UserResponse, error)
}
