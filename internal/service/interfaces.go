package service

import (
	"context"

	"github.com/wfunc/story-game/internal/models"
)

// AuthService 认证服务接口
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	Logout(ctx context.Context, userID uint, token string) error
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// RoomService 房间服务接口
type RoomService interface {
	CreateRoom(ctx context.Context, req *CreateRoomRequest) (*models.Room, error)
	JoinRoom(ctx context.Context, code string, userID uint, username string) error
	LeaveRoom(ctx context.Context, code string, userID uint) error
	StartGame(ctx context.Context, code string, userID uint) error
	SubmitAction(ctx context.Context, code string, userID uint, input string) error
	GetState(ctx context.Context, code string) (map[string]interface{}, error)
	GetTranscript(ctx context.Context, code string) (string, error)
	ListRooms(ctx context.Context, status string, page, pageSize int) ([]*models.Room, error)
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=20"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	Nickname        string `json:"nickname"`
	Avatar          string `json:"avatar"`
	IP              string `json:"-"` // 客户端IP，由handler设置
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Device   string `json:"device"`
	IP       string `json:"-"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	TokenType    string       `json:"token_type"`
}

// TokenClaims 已验证令牌的声明
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	Genre      string `json:"genre" binding:"required"`
	Mode       string `json:"mode"`
	MaxPlayers int    `json:"max_players"`
	HostID     uint   `json:"-"`
	HostName   string `json:"-"`
}
