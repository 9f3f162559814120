package repository

import (
	"context"

	"github.com/wfunc/story-game/internal/models"
	"gorm.io/gorm"
)

// StorySegmentRepository 故事段落仓储接口
type StorySegmentRepository interface {
	BaseRepository
	Append(ctx context.Context, segment *models.StorySegment) error
	GetByRoom(ctx context.Context, roomID uint) ([]*models.StorySegment, error)
	GetTrailing(ctx context.Context, roomID uint, n int) ([]*models.StorySegment, error)
	CountByRoom(ctx context.Context, roomID uint) (int64, error)
	DeleteByRoom(ctx context.Context, roomID uint) error
}

// storySegmentRepo 故事段落仓储实现
type storySegmentRepo struct {
	*BaseRepo
}

// NewStorySegmentRepository 创建故事段落仓储
func NewStorySegmentRepository(db *gorm.DB) StorySegmentRepository {
	return &storySegmentRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Append 追加故事段落（只追加，不修改历史）
func (r *storySegmentRepo) Append(ctx context.Context, segment *models.StorySegment) error {
	if segment.Seq == 0 {
		var maxSeq int
		r.db.WithContext(ctx).
			Model(&models.StorySegment{}).
			Where("room_id = ?", segment.RoomID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq)
		segment.Seq = maxSeq + 1
	}
	return r.db.WithContext(ctx).Create(segment).Error
}

// GetByRoom 获取房间全部段落（按序号升序）
func (r *storySegmentRepo) GetByRoom(ctx context.Context, roomID uint) ([]*models.StorySegment, error) {
	var segments []*models.StorySegment
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq ASC").
		Find(&segments).Error
	return segments, err
}

// GetTrailing 获取最近n条段落（按时间顺序返回）
func (r *storySegmentRepo) GetTrailing(ctx context.Context, roomID uint, n int) ([]*models.StorySegment, error) {
	var segments []*models.StorySegment
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		Limit(n).
		Find(&segments).Error
	if err != nil {
		return nil, err
	}

	// 反转为时间顺序
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return segments, nil
}

// CountByRoom 统计房间段落数
func (r *storySegmentRepo) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StorySegment{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}

// DeleteByRoom 删除房间全部段落（仅用于重新开局）
func (r *storySegmentRepo) DeleteByRoom(ctx context.Context, roomID uint) error {
	return r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&models.StorySegment{}).Error
}

// WithTx 使用事务
func (r *storySegmentRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &storySegmentRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
