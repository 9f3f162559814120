package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/story-game/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试套件设置测试数据库
func SetupTestDB() *gorm.DB {
	// 使用内存数据库进行测试（更快，不需要文件系统，在所有环境中都能工作）
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		// 用户系统
		&models.User{},
		&models.UserAuth{},
		&models.UserSession{},

		// 房间/故事系统
		&models.Room{},
		&models.RoomPlayer{},
		&models.StorySegment{},
	)
	if err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SeedTestRoom 创建带玩家的测试房间
func SeedTestRoom(t *testing.T, db *gorm.DB, playerNames ...string) *models.Room {
	room := &models.Room{
		Code:   "TEST01",
		HostID: 1,
		Genre:  "survival",
		Mode:   models.ModeFreeText,
	}
	err := db.Create(room).Error
	require.NoError(t, err)

	for i, name := range playerNames {
		player := &models.RoomPlayer{
			RoomID:    room.ID,
			UserID:    uint(i + 1),
			Username:  name,
			Status:    models.PlayerStatusAlive,
			JoinOrder: i,
		}
		err = db.Create(player).Error
		require.NoError(t, err)
	}

	return room
}

// SeedTestUser 创建测试用户
func SeedTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{
		Username: username,
		Nickname: username,
		Status:   "active",
	}
	err := db.Create(user).Error
	require.NoError(t, err)
	return user
}

// AssertRoomPlayer 验证房间玩家
func AssertRoomPlayer(t *testing.T, expected, actual *models.RoomPlayer) {
	assert.Equal(t, expected.RoomID, actual.RoomID)
	assert.Equal(t, expected.UserID, actual.UserID)
	assert.Equal(t, expected.Username, actual.Username)
	assert.Equal(t, expected.Status, actual.Status)
}

// AssertSegmentOrder 验证段落按序号升序
func AssertSegmentOrder(t *testing.T, segments []*models.StorySegment) {
	for i := 1; i < len(segments); i++ {
		assert.Greater(t, segments[i].Seq, segments[i-1].Seq)
	}
}
