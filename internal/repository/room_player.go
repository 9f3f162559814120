package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/story-game/internal/models"
	"gorm.io/gorm"
)

// RoomPlayerRepository 房间玩家仓储接口
type RoomPlayerRepository interface {
	BaseRepository
	Create(ctx context.Context, player *models.RoomPlayer) error
	Update(ctx context.Context, player *models.RoomPlayer) error
	FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*models.RoomPlayer, error)
	GetByRoom(ctx context.Context, roomID uint) ([]*models.RoomPlayer, error)
	GetAliveByRoom(ctx context.Context, roomID uint) ([]*models.RoomPlayer, error)
	CountByRoom(ctx context.Context, roomID uint) (int64, error)
	MarkDead(ctx context.Context, roomID uint, username string) error
	MarkLeft(ctx context.Context, roomID, userID uint) error
}

// roomPlayerRepo 房间玩家仓储实现
type roomPlayerRepo struct {
	*BaseRepo
}

// NewRoomPlayerRepository 创建房间玩家仓储
func NewRoomPlayerRepository(db *gorm.DB) RoomPlayerRepository {
	return &roomPlayerRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建房间玩家
func (r *roomPlayerRepo) Create(ctx context.Context, player *models.RoomPlayer) error {
	return r.db.WithContext(ctx).Create(player).Error
}

// Update 更新房间玩家
func (r *roomPlayerRepo) Update(ctx context.Context, player *models.RoomPlayer) error {
	return r.db.WithContext(ctx).Save(player).Error
}

// FindByRoomAndUser 根据房间和用户查找
func (r *roomPlayerRepo) FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*models.RoomPlayer, error) {
	var player models.RoomPlayer
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("玩家不在房间中")
		}
		return nil, err
	}
	return &player, nil
}

// GetByRoom 获取房间内全部玩家（按座次排序）
func (r *roomPlayerRepo) GetByRoom(ctx context.Context, roomID uint) ([]*models.RoomPlayer, error) {
	var players []*models.RoomPlayer
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("join_order ASC").
		Find(&players).Error
	return players, err
}

// GetAliveByRoom 获取房间内存活玩家（按座次排序）
func (r *roomPlayerRepo) GetAliveByRoom(ctx context.Context, roomID uint) ([]*models.RoomPlayer, error) {
	var players []*models.RoomPlayer
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, models.PlayerStatusAlive).
		Order("join_order ASC").
		Find(&players).Error
	return players, err
}

// CountByRoom 统计房间内玩家数
func (r *roomPlayerRepo) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RoomPlayer{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}

// MarkDead 标记玩家死亡
func (r *roomPlayerRepo) MarkDead(ctx context.Context, roomID uint, username string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.RoomPlayer{}).
		Where("room_id = ? AND username = ?", roomID, username).
		Updates(map[string]interface{}{
			"status":  models.PlayerStatusDead,
			"died_at": now,
		}).Error
}

// MarkLeft 标记玩家主动退出
func (r *roomPlayerRepo) MarkLeft(ctx context.Context, roomID, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.RoomPlayer{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("left", true).Error
}

// WithTx 使用事务
func (r *roomPlayerRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &roomPlayerRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
