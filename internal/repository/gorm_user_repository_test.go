package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spec-kit/user-guard/internal/domain"
)

func newSQLiteRepo(t *testing.T) UserRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrateUsers(db))
	return NewGormUserRepository(db)
}

func TestGormCreateAndLookup(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	user := &domain.User{Email: "a@x.com", PasswordHash: "hash", FullName: "A", Role: domain.RoleUser}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, domain.RoleUser, got.Role)

	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.FullName)
}

func TestGormDuplicateEmail(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.User{Email: "a@x.com", PasswordHash: "h", FullName: "A", Role: domain.RoleUser}))
	err := repo.Create(ctx, &domain.User{Email: "a@x.com", PasswordHash: "h", FullName: "B", Role: domain.RoleAdmin})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestGormNotFound(t *testing.T) {
	repo := newSQLiteRepo(t)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail(context.Background(), "nope@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormEmailIsCaseSensitive(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.User{Email: "a@x.com", PasswordHash: "h", FullName: "A", Role: domain.RoleUser}))

	_, err := repo.GetByEmail(ctx, "A@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, repo.Create(ctx, &domain.User{Email: "A@x.com", PasswordHash: "h", FullName: "B", Role: domain.RoleUser}))
}

func TestEmailCollationDDL(t *testing.T) {
	ddl := emailCollationDDL("mysql")
	assert.Contains(t, ddl, "ALTER TABLE users MODIFY email")
	assert.Contains(t, ddl, "COLLATE utf8mb4_bin")
	assert.Contains(t, ddl, "NOT NULL")

	assert.Empty(t, emailCollationDDL("sqlite"))
	assert.Empty(t, emailCollationDDL("postgres"))
}

func TestIsGormDuplicate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"translated", gorm.ErrDuplicatedKey, true},
		{"mysql dup entry", &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'a@x.com' for key 'users.idx_users_email'"}, true},
		{"wrapped mysql dup entry", fmt.Errorf("insert: %w", &mysqldriver.MySQLError{Number: 1062}), true},
		{"other mysql error", &mysqldriver.MySQLError{Number: 1045, Message: "Access denied"}, false},
		{"mysql error mentioning 1062", &mysqldriver.MySQLError{Number: 1146, Message: "Table 'auth.users_1062' doesn't exist"}, false},
		{"port 1062 in dial error", errors.New("dial tcp 10.0.0.1:1062: connection refused"), false},
		{"sqlite unique", errors.New("UNIQUE constraint failed: users.email"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isGormDuplicate(tt.err))
		})
	}
}
