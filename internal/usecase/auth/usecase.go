package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"authn-service/internal/adapter/ratelimit"
	domain "authn-service/internal/domain/user"
	apperrors "authn-service/pkg/errors"
	"authn-service/pkg/logger"
	"authn-service/pkg/security"
)

// Repository is the persistence boundary for users.
// Insert must fail with apperrors.ErrDuplicateEmail when the email is
// taken; FetchByEmail returns nil, nil when no user matches.
type Repository interface {
	Insert(ctx context.Context, u *domain.User) error
	FetchByEmail(ctx context.Context, email string) (*domain.User, error)
}

// PasswordHasher hashes new passwords and verifies submitted ones.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
	DummyHash() string
}

// IDGenerator produces new user identifiers.
type IDGenerator interface {
	Generate() string
}

// Usecase implements Service.
type Usecase struct {
	repo         Repository          // Repository for data access
	hasher       PasswordHasher      // Password hashing and verification
	ids          IDGenerator         // Identifier source for new users
	loginLimiter ratelimit.Limiter   // Per-account login throttle
	log          *zap.Logger         // Logger for structured logging
	validate     *validator.Validate // Validator for request validation
}

// Option configures a Usecase.
type Option func(*Usecase)

// WithLoginLimiter throttles login attempts per account email.
func WithLoginLimiter(l ratelimit.Limiter) Option {
	return func(uc *Usecase) {
		if l != nil {
			uc.loginLimiter = l
		}
	}
}

// New creates a new instance of Usecase.
func New(r Repository, h PasswordHasher, ids IDGenerator, log *zap.Logger, opts ...Option) *Usecase {
	uc := &Usecase{
		repo:         r,
		hasher:       h,
		ids:          ids,
		loginLimiter: ratelimit.Noop{},
		log:          log,
		validate:     security.NewValidator(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// formatValidationError converts validator.ValidationErrors into a
// ValidationError keyed by json field name.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		if _, seen := fields[e.Field()]; seen {
			continue
		}
		switch e.Tag() {
		case "required":
			fields[e.Field()] = fmt.Sprintf("%s is required", e.Field())
		case "email":
			fields[e.Field()] = fmt.Sprintf("%s must be a valid email", e.Field())
		case "min":
			fields[e.Field()] = fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
		case "max":
			fields[e.Field()] = fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
		case "maxbytes":
			fields[e.Field()] = fmt.Sprintf("%s must be at most %s bytes", e.Field(), e.Param())
		default:
			fields[e.Field()] = fmt.Sprintf("%s is invalid", e.Field())
		}
	}
	return apperrors.NewValidationError("invalid request", fields)
}

// Register validates the request, assigns an identifier, hashes the
// password and persists the user. A taken email is reported with the same
// generic error as any other registration conflict.
func (uc *Usecase) Register(ctx context.Context, in RegisterRequest) (*UserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	in.Name = strings.TrimSpace(in.Name)
	in.Email = security.NormalizeEmail(in.Email)

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("register validation failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	u := &domain.User{
		ID:    uc.ids.Generate(),
		Name:  in.Name,
		Email: in.Email,
	}

	hash, err := uc.hasher.Hash(in.Password)
	if err != nil {
		log.Error("failed to hash password", zap.String("user_id", u.ID), zap.Error(err))
		return nil, apperrors.Public(err)
	}
	u.PasswordHash = hash

	if err := uc.repo.Insert(ctx, u); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateEmail) {
			log.Warn("registration rejected, email already registered")
		} else {
			log.Error("failed to persist user", zap.String("user_id", u.ID), zap.Error(err))
		}
		return nil, apperrors.Public(err)
	}

	log.Info("user registered", zap.String("user_id", u.ID))
	return toResponse(u), nil
}

// Login authenticates the user. An unknown email and a wrong password are
// indistinguishable to the caller: both run one full password verification
// and both return ErrInvalidCredentials.
func (uc *Usecase) Login(ctx context.Context, in LoginRequest) (*UserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	in.Email = security.NormalizeEmail(in.Email)

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("login validation failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	if d := uc.loginLimiter.Admit(ctx, "login:"+in.Email); !d.Allowed {
		log.Warn("login attempts exceeded for account", zap.Duration("retry_after", d.RetryAfter))
		return nil, apperrors.NewRateLimitedError(d.RetryAfter)
	}

	u, err := uc.repo.FetchByEmail(ctx, in.Email)
	if err != nil {
		log.Error("failed to look up user", zap.Error(err))
		return nil, apperrors.Public(err)
	}

	if u == nil {
		uc.hasher.Verify(in.Password, uc.hasher.DummyHash())
		log.Info("login failed", zap.String("reason", "unknown email"))
		return nil, apperrors.ErrInvalidCredentials
	}

	if !uc.hasher.Verify(in.Password, u.PasswordHash) {
		log.Info("login failed", zap.String("reason", "password mismatch"), zap.String("user_id", u.ID))
		return nil, apperrors.ErrInvalidCredentials
	}

	log.Info("user authenticated", zap.String("user_id", u.ID))
	return toResponse(u), nil
}
