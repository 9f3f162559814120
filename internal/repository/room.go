package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/wfunc/story-game/internal/errors"
	"github.com/wfunc/story-game/internal/models"
	"gorm.io/gorm"
)

// RoomRepository 房间仓储接口
type RoomRepository interface {
	BaseRepository
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id uint) (*models.Room, error)
	FindByCode(ctx context.Context, code string) (*models.Room, error)
	FindByCodeWithPlayers(ctx context.Context, code string) (*models.Room, error)
	GetByStatus(ctx context.Context, status string, pagination *Pagination) ([]*models.Room, error)
	UpdateStatus(ctx context.Context, roomID uint, status string) error
	UpdateTurnIndex(ctx context.Context, roomID uint, turnIndex int) error
	UpdateProgress(ctx context.Context, roomID uint, progress models.JSONMap) error
	MarkEnded(ctx context.Context, roomID uint) error
}

// roomRepo 房间仓储实现
type roomRepo struct {
	*BaseRepo
}

// NewRoomRepository 创建房间仓储
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建房间
func (r *roomRepo) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// Update 更新房间
func (r *roomRepo) Update(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Save(room).Error
}

// FindByID 根据ID查找房间
func (r *roomRepo) FindByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrRoomNotFound)
		}
		return nil, err
	}
	return &room, nil
}

// FindByCode 根据房间码查找
func (r *roomRepo) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(code)).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrRoomNotFound)
		}
		return nil, err
	}
	return &room, nil
}

// FindByCodeWithPlayers 根据房间码查找并预加载玩家
func (r *roomRepo) FindByCodeWithPlayers(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("join_order ASC")
		}).
		Where("code = ?", strings.ToUpper(code)).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrRoomNotFound)
		}
		return nil, err
	}
	return &room, nil
}

// GetByStatus 按状态查询房间（分页）
func (r *roomRepo) GetByStatus(ctx context.Context, status string, pagination *Pagination) ([]*models.Room, error) {
	var rooms []*models.Room
	query := r.db.WithContext(ctx).Model(&models.Room{}).Where("status = ?", status)

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&rooms).Error

	return rooms, err
}

// UpdateStatus 更新房间状态
func (r *roomRepo) UpdateStatus(ctx context.Context, roomID uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("status", status).Error
}

// UpdateTurnIndex 更新当前行动座次
func (r *roomRepo) UpdateTurnIndex(ctx context.Context, roomID uint, turnIndex int) error {
	return r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("turn_index", turnIndex).Error
}

// UpdateProgress 更新进度计数器
func (r *roomRepo) UpdateProgress(ctx context.Context, roomID uint, progress models.JSONMap) error {
	return r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("progress", progress).Error
}

// MarkEnded 标记游戏结束
func (r *roomRepo) MarkEnded(ctx context.Context, roomID uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"status":   models.RoomStatusEnded,
			"ended_at": now,
		}).Error
}

// WithTx 使用事务
func (r *roomRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &roomRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
