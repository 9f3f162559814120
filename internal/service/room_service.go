package service

import (
	"context"

	apperrors "github.com/wfunc/story-game/internal/errors"
	"github.com/wfunc/story-game/internal/game"
	"github.com/wfunc/story-game/internal/models"
	"github.com/wfunc/story-game/internal/repository"
	"github.com/wfunc/story-game/internal/utils"
	"go.uber.org/zap"
)

// 房间码碰撞时的重试次数
const roomCodeAttempts = 5

// roomService 房间服务实现
type roomService struct {
	roomRepo   repository.RoomRepository
	playerRepo repository.RoomPlayerRepository
	manager    *game.SessionManager
	codeLength int
	maxPlayers int
	log        *zap.Logger
}

// NewRoomService 创建房间服务
func NewRoomService(
	roomRepo repository.RoomRepository,
	playerRepo repository.RoomPlayerRepository,
	manager *game.SessionManager,
	codeLength int,
	maxPlayers int,
	log *zap.Logger,
) RoomService {
	if codeLength <= 0 {
		codeLength = 6
	}
	if maxPlayers <= 0 {
		maxPlayers = 4
	}
	return &roomService{
		roomRepo:   roomRepo,
		playerRepo: playerRepo,
		manager:    manager,
		codeLength: codeLength,
		maxPlayers: maxPlayers,
		log:        log,
	}
}

// CreateRoom 创建房间。房主自动成为第一个玩家。
func (s *roomService) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*models.Room, error) {
	mode := req.Mode
	if mode == "" {
		mode = models.ModeFreeText
	}
	if mode != models.ModeFreeText && mode != models.ModeMultipleChoice {
		return nil, apperrors.New(apperrors.ErrInvalidParam)
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = s.maxPlayers
	}

	var room *models.Room
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := utils.GenerateRoomCode(s.codeLength)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrUnknown)
		}

		room = &models.Room{
			Code:       code,
			HostID:     req.HostID,
			Status:     models.RoomStatusLobby,
			Genre:      req.Genre,
			Mode:       mode,
			MaxPlayers: maxPlayers,
		}
		if err := s.roomRepo.Create(ctx, room); err == nil {
			break
		} else if attempt == roomCodeAttempts-1 {
			s.log.Error("创建房间失败", zap.Error(err))
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
		}
		room = nil
	}

	host := &models.RoomPlayer{
		RoomID:    room.ID,
		UserID:    req.HostID,
		Username:  req.HostName,
		Status:    models.PlayerStatusAlive,
		JoinOrder: 0,
	}
	if err := s.playerRepo.Create(ctx, host); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}

	s.log.Info("房间已创建",
		zap.String("room_code", room.Code),
		zap.Uint("host_id", req.HostID),
		zap.String("genre", req.Genre))

	room.Players = []models.RoomPlayer{*host}
	return room, nil
}

// JoinRoom 加入房间。进行中的游戏也允许加入，新玩家会被剧情引入；
// 已结束的房间不能加入。
func (s *roomService) JoinRoom(ctx context.Context, code string, userID uint, username string) error {
	session, err := s.manager.Get(ctx, code)
	if err != nil {
		return err
	}

	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if room.IsEnded() {
		return apperrors.New(apperrors.ErrGameEnded)
	}

	count, err := s.playerRepo.CountByRoom(ctx, room.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if existing, _ := s.playerRepo.FindByRoomAndUser(ctx, room.ID, userID); existing == nil && int(count) >= room.MaxPlayers {
		return apperrors.New(apperrors.ErrRoomFull)
	}

	snapshot := []*game.Player{{ID: userID, Username: username}}
	return session.ReconcilePresence(ctx, snapshot, userID == session.HostID())
}

// LeaveRoom 显式退出房间
func (s *roomService) LeaveRoom(ctx context.Context, code string, userID uint) error {
	session, err := s.manager.Get(ctx, code)
	if err != nil {
		return err
	}
	return session.Leave(ctx, userID)
}

// StartGame 开始游戏（仅房主）
func (s *roomService) StartGame(ctx context.Context, code string, userID uint) error {
	session, err := s.manager.Get(ctx, code)
	if err != nil {
		return err
	}
	return session.Start(ctx, userID)
}

// SubmitAction 提交当前回合玩家的行动
func (s *roomService) SubmitAction(ctx context.Context, code string, userID uint, input string) error {
	session, err := s.manager.Get(ctx, code)
	if err != nil {
		return err
	}
	return session.SubmitAction(ctx, userID, input)
}

// GetState 查询房间状态
func (s *roomService) GetState(ctx context.Context, code string) (map[string]interface{}, error) {
	session, err := s.manager.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return session.State(), nil
}

// GetTranscript 导出房间剧本
func (s *roomService) GetTranscript(ctx context.Context, code string) (string, error) {
	session, err := s.manager.Get(ctx, code)
	if err != nil {
		return "", err
	}
	return session.Transcript(), nil
}

// ListRooms 按状态分页列出房间
func (s *roomService) ListRooms(ctx context.Context, status string, page, pageSize int) ([]*models.Room, error) {
	if status == "" {
		status = models.RoomStatusLobby
	}
	return s.roomRepo.GetByStatus(ctx, status, repository.NewPagination(page, pageSize))
}
