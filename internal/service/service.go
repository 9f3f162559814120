package service

import (
	"context"
	"time"

	"github.com/wfunc/story-game/internal/config"
	"github.com/wfunc/story-game/internal/game"
	"github.com/wfunc/story-game/internal/narrator"
	"github.com/wfunc/story-game/internal/repository"
	"github.com/wfunc/story-game/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Auth    AuthService
	Room    RoomService
	Manager *game.SessionManager
}

// NewServices 创建服务集合。
// broadcaster由WebSocket Hub提供，narratorClient为nil时
// 按配置构建HTTP叙事客户端。
func NewServices(db *gorm.DB, cfg *config.Config, broadcaster game.Broadcaster, narratorClient narrator.Client, log *zap.Logger) *Services {
	userRepo := repository.NewUserRepository(db)
	authRepo := repository.NewUserAuthRepository(db)
	sessionRepo := repository.NewUserSessionRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	playerRepo := repository.NewRoomPlayerRepository(db)
	segmentRepo := repository.NewStorySegmentRepository(db)

	jwtManager := utils.NewJWTManager(
		cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.ExpireHours)*time.Hour,
		time.Duration(cfg.Security.JWT.RefreshHours)*time.Hour,
	)

	if narratorClient == nil {
		narratorClient = narrator.NewHTTPClient(&cfg.Narrator)
	}

	deps := game.Deps{
		Narrator:       narratorClient,
		Rooms:          roomRepo,
		Players:        playerRepo,
		Segments:       segmentRepo,
		Broadcaster:    broadcaster,
		HistoryWindow:  cfg.Game.HistoryWindow,
		StartCountdown: cfg.Game.StartCountdown,
		Tone:           cfg.Narrator.Tone,
		PacingGoal:     cfg.Narrator.PacingGoal,
	}

	manager := game.NewSessionManager(func(ctx context.Context, code string) (*game.Session, error) {
		room, err := roomRepo.FindByCodeWithPlayers(ctx, code)
		if err != nil {
			return nil, err
		}
		return game.NewSession(ctx, room, deps)
	})

	return &Services{
		Auth:    NewAuthService(db, userRepo, authRepo, sessionRepo, jwtManager, log),
		Room:    NewRoomService(roomRepo, playerRepo, manager, cfg.Game.CodeLength, cfg.Game.MaxPlayers, log),
		Manager: manager,
	}
}
