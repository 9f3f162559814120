package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// 房间状态
const (
	RoomStatusLobby   = "lobby"   // 等待玩家
	RoomStatusPlaying = "playing" // 游戏进行中
	RoomStatusEnded   = "ended"   // 游戏已结束
)

// 玩家状态
const (
	PlayerStatusAlive = "alive" // 存活
	PlayerStatusDead  = "dead"  // 死亡
)

// 输入模式
const (
	ModeFreeText       = "free_text"       // 自由文本输入
	ModeMultipleChoice = "multiple_choice" // 多选项输入
)

// Room 故事房间表
type Room struct {
	BaseModel
	Code       string     `gorm:"uniqueIndex;size:10;not null" json:"code"`
	HostID     uint       `gorm:"index;not null" json:"host_id"`
	Status     string     `gorm:"size:20;default:'lobby';index" json:"status"` // lobby, playing, ended
	Genre      string     `gorm:"size:30;not null" json:"genre"`               // survival, fantasy, horror, mystery, sci-fi, adventure
	Mode       string     `gorm:"size:30;default:'free_text'" json:"mode"`     // free_text, multiple_choice
	TurnIndex  int        `gorm:"default:0" json:"turn_index"`                 // 当前行动玩家在座次中的下标
	MaxPlayers int        `gorm:"default:4" json:"max_players"`
	Progress   JSONMap    `gorm:"type:json" json:"progress"`                   // 题材相关的进度计数器
	EndedAt    *time.Time `json:"ended_at,omitempty"`

	// 关联
	Players  []RoomPlayer   `gorm:"foreignKey:RoomID" json:"players,omitempty"`
	Segments []StorySegment `gorm:"foreignKey:RoomID" json:"-"`
}

// RoomPlayer 房间玩家表（座次与生死状态）
type RoomPlayer struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	RoomID    uint       `gorm:"index:idx_room_user,unique;not null" json:"room_id"`
	UserID    uint       `gorm:"index:idx_room_user,unique;not null" json:"user_id"`
	Username  string     `gorm:"size:50;not null" json:"username"`
	Status    string     `gorm:"size:20;default:'alive'" json:"status"` // alive, dead
	JoinOrder int        `gorm:"not null" json:"join_order"`            // 加入顺序，决定行动座次
	Left      bool       `gorm:"default:false" json:"left"`             // 是否已主动退出
	DiedAt    *time.Time `json:"died_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// StorySegment 故事段落表（只追加）
type StorySegment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RoomID        uint      `gorm:"index;not null" json:"room_id"`
	Seq           int       `gorm:"index;not null" json:"seq"`     // 房间内段落序号
	PlayerInput   string    `gorm:"type:text" json:"player_input"`
	PlayerName    string    `gorm:"size:50" json:"player_name"`
	NarrationText string    `gorm:"type:text;not null" json:"narration_text"`
	Degraded      bool      `gorm:"default:false" json:"degraded"` // 是否为降级兜底文本
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定Room表名
func (Room) TableName() string {
	return "rooms"
}

// TableName 指定RoomPlayer表名
func (RoomPlayer) TableName() string {
	return "room_players"
}

// TableName 指定StorySegment表名
func (StorySegment) TableName() string {
	return "story_segments"
}

// BeforeCreate 创建前的钩子
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.Status == "" {
		r.Status = RoomStatusLobby
	}
	if r.Mode == "" {
		r.Mode = ModeFreeText
	}
	if r.MaxPlayers == 0 {
		r.MaxPlayers = 4
	}
	if r.Progress == nil {
		r.Progress = JSONMap{}
	}
	r.Code = strings.ToUpper(r.Code)
	return nil
}

// IsLobby 检查房间是否在等待阶段
func (r *Room) IsLobby() bool {
	return r.Status == RoomStatusLobby
}

// IsPlaying 检查游戏是否进行中
func (r *Room) IsPlaying() bool {
	return r.Status == RoomStatusPlaying
}

// IsEnded 检查游戏是否已结束
func (r *Room) IsEnded() bool {
	return r.Status == RoomStatusEnded
}

// IsAlive 检查玩家是否存活
func (p *RoomPlayer) IsAlive() bool {
	return p.Status == PlayerStatusAlive
}

// MarkDead 标记玩家死亡（单向）
func (p *RoomPlayer) MarkDead() {
	if p.Status == PlayerStatusDead {
		return
	}
	p.Status = PlayerStatusDead
	now := time.Now()
	p.DiedAt = &now
}
