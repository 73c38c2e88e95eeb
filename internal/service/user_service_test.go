package service

import (
	"context"
	"testing"
	"time"

	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/store"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newUserService(t *testing.T, admins ...string) (*UserService, *jwt.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, store.Migrate(db))

	tokens := jwt.NewService("test-secret", time.Hour)
	return NewUserService(db, tokens, admins), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newUserService(t)
	ctx := context.Background()

	user, token, err := svc.CreateUser(ctx, &models.CreateUserRequest{Name: "Ada", Email: "Ada@Example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "correct horse", user.Password)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, jwt.RoleUser, claims.Role)

	logged, _, err := svc.Login(ctx, &models.LoginRequest{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotNil(t, logged.LastLogin)

	_, _, err = svc.Login(ctx, &models.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()
	req := &models.CreateUserRequest{Name: "Ada", Email: "ada@example.com", Password: "correct horse"}

	_, _, err := svc.CreateUser(ctx, req)
	require.NoError(t, err)
	_, _, err = svc.CreateUser(ctx, req)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestAdminEmailsGetAdminRole(t *testing.T) {
	svc, tokens := newUserService(t, "root@example.com")

	user, token, err := svc.CreateUser(context.Background(), &models.CreateUserRequest{Name: "Root", Email: "root@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.HasRole(jwt.RoleAdmin))

	got, err := svc.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = svc.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserServiceMigratesOnFirstUse(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	schema := store.NewSchema(db)
	svc := NewUserService(db, jwt.NewService("test-secret", time.Hour), nil).UseSchema(schema.Ensure)
	require.False(t, schema.Ready())

	_, _, err = svc.CreateUser(context.Background(), &models.CreateUserRequest{Name: "Ada", Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.True(t, schema.Ready())
}
