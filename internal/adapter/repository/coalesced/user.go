package coalesced

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	domain "authn-service/internal/domain/user"
	"authn-service/internal/usecase/auth"
)

// UserRepository implements auth.Repository and collapses concurrent
// lookups of the same email into a single database query.
type UserRepository struct {
	dbRepo auth.Repository
	log    *zap.Logger
	group  singleflight.Group
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(dbRepo auth.Repository, log *zap.Logger) *UserRepository {
	return &UserRepository{
		dbRepo: dbRepo,
		log:    log,
	}
}

// Insert delegates to the DB repository.
func (r *UserRepository) Insert(ctx context.Context, u *domain.User) error {
	return r.dbRepo.Insert(ctx, u)
}

// FetchByEmail uses single-flight so a burst of logins for one account
// hits the database once. Each caller gets its own copy of the result.
func (r *UserRepository) FetchByEmail(ctx context.Context, email string) (*domain.User, error) {
	result, err, shared := r.group.Do("email:"+email, func() (any, error) {
		// A cancelled leader must not fail the waiters.
		return r.dbRepo.FetchByEmail(context.WithoutCancel(ctx), email)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.log.Debug("user lookup shared with concurrent request")
	}

	u, _ := result.(*domain.User)
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}
