package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"authn-service/internal/domain/user"
	apperrors "authn-service/pkg/errors"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// Every connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// Migrate the schema
	err = db.AutoMigrate(&UserSchema{})
	require.NoError(t, err)

	return db
}

func newUser(id, email string) *user.User {
	return &user.User{
		ID:           id,
		Name:         "John Doe",
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
	}
}

func TestUserRepoPG_InsertAndFetch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))
	ctx := context.Background()

	u := newUser("0123456789abcdef0123456789abcdef", "john@example.com")
	require.NoError(t, repo.Insert(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	got, err := repo.FetchByEmail(ctx, "john@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.Name, got.Name)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
}

func TestUserRepoPG_FetchByEmail_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))

	got, err := repo.FetchByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserRepoPG_Insert_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newUser("id-1", "john@example.com")))

	err := repo.Insert(ctx, newUser("id-2", "john@example.com"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	got, err := repo.FetchByEmail(ctx, "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID, "first registration must be untouched")
}

func TestUserRepoPG_Insert_Nil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))

	assert.Error(t, repo.Insert(context.Background(), nil))
}

func TestUserRepoPG_Insert_ConcurrentSameEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))
	ctx := context.Background()

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Insert(ctx, newUser(fmt.Sprintf("id-%d", i), "race@example.com"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperrors.ErrDuplicateEmail):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, dupes)
}

func TestUserRepoPG_StorageFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoPG(db, zaptest.NewLogger(t))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = repo.Insert(context.Background(), newUser("id-1", "john@example.com"))
	var storageErr *apperrors.StorageError
	assert.ErrorAs(t, err, &storageErr)

	_, err = repo.FetchByEmail(context.Background(), "john@example.com")
	assert.ErrorAs(t, err, &storageErr)
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "gorm translated", err: fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "postgres unique violation", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "postgres other", err: &pgconn.PgError{Code: "23502"}, want: false},
		{name: "sqlite message", err: errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), want: true},
		{name: "unrelated", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDuplicateKey(tt.err))
		})
	}
}
