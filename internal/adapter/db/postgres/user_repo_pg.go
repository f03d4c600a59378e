package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"authn-service/internal/domain/user"
	apperrors "authn-service/pkg/errors"
)

// uniqueViolation is the SQLSTATE Postgres reports for a unique index conflict.
const uniqueViolation = "23505"

// UserRepoPG persists users through GORM. It runs against Postgres in
// production and SQLite in tests.
type UserRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID           string    `gorm:"primaryKey;size:32"`
	Name         string    `gorm:"size:255;not null"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:idx_users_email"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// Insert stores a new user. A taken email yields ErrDuplicateEmail; the
// unique index is the only arbiter, so concurrent inserts of the same email
// cannot both succeed.
func (r *UserRepoPG) Insert(ctx context.Context, u *user.User) error {
	if u == nil {
		return errors.New("user cannot be nil")
	}

	model := UserSchema{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicateKey(err) {
			r.log.Debug("insert rejected by unique email index")
			return apperrors.ErrDuplicateEmail
		}
		r.log.Error("failed to insert user in db", zap.Error(err), zap.String("id", u.ID))
		return apperrors.NewStorageError("insert user", err)
	}

	u.CreatedAt = model.CreatedAt
	u.UpdatedAt = model.UpdatedAt

	r.log.Info("user inserted in db", zap.String("id", model.ID))
	return nil
}

// FetchByEmail returns the user with the given email, or nil when none exists.
func (r *UserRepoPG) FetchByEmail(ctx context.Context, email string) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found by email")
			return nil, nil
		}
		r.log.Error("failed to fetch user by email from db", zap.Error(err))
		return nil, apperrors.NewStorageError("fetch user by email", err)
	}

	return toEntity(&model), nil
}

func toEntity(m *UserSchema) *user.User {
	return &user.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// isDuplicateKey recognises a unique violation from any supported driver.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
