package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authn-service/internal/usecase/auth"
	apperrors "authn-service/pkg/errors"
	"authn-service/pkg/logger"
)

// AuthHandler handles HTTP requests for registration and login
type AuthHandler struct {
	svc auth.Service
	log *zap.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(svc auth.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		svc: svc,
		log: log,
	}
}

// RegisterRequest represents the HTTP request body for registration
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the HTTP request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents the HTTP response for an authenticated or new user
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Register handles POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleBindError(c, "register", err)
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), auth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, UserResponse{
		ID:    resp.ID,
		Name:  resp.Name,
		Email: resp.Email,
	})
}

// Login handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleBindError(c, "login", err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:    resp.ID,
		Name:  resp.Name,
		Email: resp.Email,
	})
}

// handleBindError answers a body that could not be decoded. Oversized bodies
// get 413, anything else 400.
func (h *AuthHandler) handleBindError(c *gin.Context, op string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		logger.WithContext(c.Request.Context(), h.log).Warn("request body too large",
			zap.String("op", op),
			zap.Int64("limit", tooLarge.Limit),
		)
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "request_too_large",
			Message: "request body is too large",
		})
		return
	}

	logger.WithContext(c.Request.Context(), h.log).Warn("invalid request body", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_body",
		Message: "request body must be a JSON object",
	})
}

// handleError converts usecase errors to HTTP responses. Anything that is
// not a known public error becomes an opaque 500.
func (h *AuthHandler) handleError(c *gin.Context, err error) {
	var (
		validationErr   *apperrors.ValidationError
		rateErr         *apperrors.RateLimitedError
		registrationErr *apperrors.RegistrationError
		credentialsErr  *apperrors.CredentialsError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Message,
			Fields:  validationErr.Fields,
		})
	case errors.As(err, &rateErr):
		WriteRateLimited(c, rateErr)
	case errors.As(err, &registrationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "registration_failed",
			Message: registrationErr.Message,
		})
	case errors.As(err, &credentialsErr):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_credentials",
			Message: credentialsErr.Message,
		})
	default:
		logger.WithContext(c.Request.Context(), h.log).Error("unexpected error reached transport", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

// WriteRateLimited writes a 429 with a Retry-After header in whole seconds.
func WriteRateLimited(c *gin.Context, err *apperrors.RateLimitedError) {
	seconds := int(math.Ceil(err.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		Error:   "rate_limit_exceeded",
		Message: "too many requests, retry later",
	})
}
