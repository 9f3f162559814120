package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/story-game/internal/models"
	"github.com/wfunc/story-game/internal/repository"
	"github.com/wfunc/story-game/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserExists         = errors.New("用户已存在")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUserBanned         = errors.New("用户已被封禁")
	ErrSessionNotFound    = errors.New("会话不存在")
	ErrInvalidToken       = errors.New("无效的令牌")
	ErrTokenExpired       = errors.New("令牌已过期")
)

// 会话有效期
const sessionTTL = 30 * 24 * time.Hour

// authService 认证服务实现
type authService struct {
	db          *gorm.DB
	userRepo    repository.UserRepository
	authRepo    repository.UserAuthRepository
	sessionRepo repository.UserSessionRepository
	jwtManager  *utils.JWTManager
	log         *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	authRepo repository.UserAuthRepository,
	sessionRepo repository.UserSessionRepository,
	jwtManager *utils.JWTManager,
	log *zap.Logger,
) AuthService {
	return &authService{
		db:          db,
		userRepo:    userRepo,
		authRepo:    authRepo,
		sessionRepo: sessionRepo,
		jwtManager:  jwtManager,
		log:         log,
	}
}

// Register 用户注册
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if user, _ := s.userRepo.FindByUsername(ctx, req.Username); user != nil {
		return nil, ErrUserExists
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	user := &models.User{
		Username: req.Username,
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
		Status:   "active",
	}

	txUserRepo := repository.NewUserRepository(tx)
	if err := txUserRepo.Create(ctx, user); err != nil {
		tx.Rollback()
		s.log.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	auth := &models.UserAuth{
		UserID:   user.ID,
		Password: hashedPassword,
	}
	txAuthRepo := repository.NewUserAuthRepository(tx)
	if err := txAuthRepo.Create(ctx, auth); err != nil {
		tx.Rollback()
		s.log.Error("Failed to create auth", zap.Error(err))
		return nil, fmt.Errorf("创建认证信息失败: %w", err)
	}

	sessionID, err := utils.GenerateSessionID()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("生成会话ID失败: %w", err)
	}

	session := &models.UserSession{
		UserID:       user.ID,
		SessionID:    sessionID,
		Token:        sessionID,
		IP:           req.IP,
		LastActiveAt: time.Now(),
		ExpireAt:     time.Now().Add(sessionTTL),
	}
	txSessionRepo := repository.NewUserSessionRepository(tx)
	if err := txSessionRepo.Create(ctx, session); err != nil {
		tx.Rollback()
		s.log.Error("Failed to create session", zap.Error(err))
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username, sessionID)
	if err != nil {
		return nil, fmt.Errorf("生成访问令牌失败: %w", err)
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("生成刷新令牌失败: %w", err)
	}

	s.log.Info("User registered successfully",
		zap.Uint("userID", user.ID), zap.String("username", user.Username))

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// Login 用户登录
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil || user == nil {
		s.log.Warn("Login failed: user not found", zap.String("username", req.Username))
		return nil, ErrInvalidCredentials
	}

	if user.Status == "banned" {
		return nil, ErrUserBanned
	}

	auth, err := s.authRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		s.log.Error("Failed to get auth info", zap.Error(err), zap.Uint("userID", user.ID))
		return nil, ErrInvalidCredentials
	}

	valid, err := utils.VerifyPassword(req.Password, auth.Password)
	if err != nil || !valid {
		s.log.Warn("Login failed: invalid password", zap.Uint("userID", user.ID))
		_ = s.authRepo.IncrementLoginAttempts(ctx, user.ID)
		return nil, ErrInvalidCredentials
	}

	sessionID, err := utils.GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("生成会话ID失败: %w", err)
	}

	session := &models.UserSession{
		UserID:       user.ID,
		SessionID:    sessionID,
		Token:        sessionID,
		IP:           req.IP,
		UserAgent:    req.Device,
		LastActiveAt: time.Now(),
		ExpireAt:     time.Now().Add(sessionTTL),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		s.log.Error("Failed to create session", zap.Error(err))
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}

	user.UpdateLoginInfo(req.IP)
	_ = s.userRepo.Update(ctx, user)
	_ = s.authRepo.ResetLoginAttempts(ctx, user.ID)

	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username, sessionID)
	if err != nil {
		return nil, fmt.Errorf("生成访问令牌失败: %w", err)
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("生成刷新令牌失败: %w", err)
	}

	s.log.Info("User logged in successfully",
		zap.Uint("userID", user.ID), zap.String("username", user.Username))

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// Logout 用户登出
func (s *authService) Logout(ctx context.Context, userID uint, token string) error {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.sessionRepo.SetOnline(ctx, claims.SessionID, false); err != nil {
		s.log.Error("Failed to close session",
			zap.Error(err), zap.String("sessionID", claims.SessionID))
		return fmt.Errorf("关闭会话失败: %w", err)
	}

	s.log.Info("User logged out successfully", zap.Uint("userID", userID))
	return nil
}

// RefreshToken 刷新令牌
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != "refresh" {
		return nil, errors.New("不是刷新令牌")
	}

	session, err := s.sessionRepo.FindBySessionID(ctx, claims.SessionID)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}
	if session.ExpireAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("生成访问令牌失败: %w", err)
	}

	s.log.Info("Token refreshed successfully", zap.Uint("userID", user.ID))

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// ValidateToken 验证令牌并检查会话有效性
func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindBySessionID(ctx, claims.SessionID)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}
	if session.ExpireAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	return &TokenClaims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		SessionID: claims.SessionID,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}
