package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/story-game/internal/models"
	"github.com/wfunc/story-game/internal/repository"
	"github.com/wfunc/story-game/internal/utils"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupAuthTest(t *testing.T) AuthService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.UserAuth{}, &models.UserSession{}))

	jwtManager := utils.NewJWTManager("test-secret", time.Hour, 24*time.Hour)
	return NewAuthService(
		db,
		repository.NewUserRepository(db),
		repository.NewUserAuthRepository(db),
		repository.NewUserSessionRepository(db),
		jwtManager,
		zap.NewNop(),
	)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	auth := setupAuthTest(t)
	ctx := context.Background()

	resp, err := auth.Register(ctx, &RegisterRequest{
		Username: "alice",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, "alice", resp.User.Nickname)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)

	login, err := auth.Login(ctx, &LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
	assert.NotEmpty(t, login.AccessToken)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	auth := setupAuthTest(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, &RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = auth.Register(ctx, &RegisterRequest{Username: "alice", Password: "other456"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	auth := setupAuthTest(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, &RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = auth.Login(ctx, &LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(ctx, &LoginRequest{Username: "nobody", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_ValidateToken(t *testing.T) {
	auth := setupAuthTest(t)
	ctx := context.Background()

	resp, err := auth.Register(ctx, &RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	claims, err := auth.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	_, err = auth.ValidateToken(ctx, "not-a-token")
	assert.Error(t, err)
}

func TestAuthService_RefreshToken(t *testing.T) {
	auth := setupAuthTest(t)
	ctx := context.Background()

	resp, err := auth.Register(ctx, &RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := auth.RefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// 访问令牌不能用于刷新
	_, err = auth.RefreshToken(ctx, resp.AccessToken)
	assert.Error(t, err)
}
