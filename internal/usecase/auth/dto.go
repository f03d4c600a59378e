package auth

import domain "authn-service/internal/domain/user"

// RegisterRequest represents the request to register a new user.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,maxbytes=512"` // never stored or logged
}

// LoginRequest represents the request to authenticate an existing user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,maxbytes=512"` // longer passwords can never have been registered
}

// UserResponse is the public projection returned by Register and Login.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toResponse(u *domain.User) *UserResponse {
	p := u.Public()
	return &UserResponse{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
	}
}
