package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/story-game/internal/errors"
	"github.com/wfunc/story-game/internal/models"
	"github.com/wfunc/story-game/internal/narrator"
	"github.com/wfunc/story-game/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeNarrator 按脚本返回叙事文本，控制标记的剥离走真实检测器
type fakeNarrator struct {
	mu       sync.Mutex
	script   []string
	detector narrator.Detector
	calls    []*narrator.Context
	degraded bool
	blockCh  chan struct{} // 非nil时阻塞直到被关闭
	started  chan struct{}
}

func newFakeNarrator(script ...string) *fakeNarrator {
	return &fakeNarrator{
		script:   script,
		detector: narrator.NewTokenDetector(),
		started:  make(chan struct{}, 16),
	}
}

func (f *fakeNarrator) Generate(ctx context.Context, nc *narrator.Context) (*narrator.Result, error) {
	f.started <- struct{}{}
	if f.blockCh != nil {
		<-f.blockCh
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, nc)

	if f.degraded {
		return &narrator.Result{Text: "The story waits for your next move.", Degraded: true, Attempts: 3}, nil
	}

	text := "The story continues."
	if len(f.script) > 0 {
		text = f.script[0]
		f.script = f.script[1:]
	}

	clean, sig := f.detector.Detect(text)
	result := &narrator.Result{Text: clean, GameEnded: sig.GameEnded, Attempts: 1}
	if sig.Death {
		result.DeathOf = nc.CurrentPlayer
	}
	return result, nil
}

func (f *fakeNarrator) lastCall() *narrator.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// fakeBroadcaster 记录广播事件
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBroadcaster) Broadcast(roomCode string, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBroadcaster) has(event string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == event {
			return true
		}
	}
	return false
}

func setupSessionTest(t *testing.T, genre string, playerNames ...string) (*Session, *fakeNarrator, *fakeBroadcaster, *gorm.DB, *models.Room) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Room{}, &models.RoomPlayer{}, &models.StorySegment{}))

	room := &models.Room{Code: "TEST01", HostID: 1, Genre: genre, Mode: models.ModeFreeText}
	require.NoError(t, db.Create(room).Error)

	for i, name := range playerNames {
		require.NoError(t, db.Create(&models.RoomPlayer{
			RoomID:    room.ID,
			UserID:    uint(i + 1),
			Username:  name,
			Status:    models.PlayerStatusAlive,
			JoinOrder: i,
		}).Error)
	}

	loaded := &models.Room{}
	require.NoError(t, db.Preload("Players", func(d *gorm.DB) *gorm.DB {
		return d.Order("join_order ASC")
	}).First(loaded, room.ID).Error)

	fn := newFakeNarrator()
	fb := &fakeBroadcaster{}
	deps := Deps{
		Narrator:       fn,
		Rooms:          repository.NewRoomRepository(db),
		Players:        repository.NewRoomPlayerRepository(db),
		Segments:       repository.NewStorySegmentRepository(db),
		Broadcaster:    fb,
		HistoryWindow:  10,
		StartCountdown: 10 * time.Millisecond,
	}

	session, err := NewSession(context.Background(), loaded, deps)
	require.NoError(t, err)
	return session, fn, fb, db, loaded
}

func TestSession_Start_GeneratesOpening(t *testing.T) {
	session, fn, fb, db, room := setupSessionTest(t, "survival", "alice", "bob")
	fn.script = []string{"Snow falls on the ridge as your journey begins."}

	err := session.Start(context.Background(), 1)
	require.NoError(t, err)

	state := session.State()
	assert.Equal(t, "playing", state["phase"])
	assert.Equal(t, 1, state["segments"])

	// 开篇无玩家输入，走环境事件
	call := fn.lastCall()
	require.NotNil(t, call)
	assert.Empty(t, call.PlayerInput)
	assert.Equal(t, narrator.PhaseOpening, call.Phase)

	// 段落落库，房间状态更新
	var count int64
	db.Model(&models.StorySegment{}).Where("room_id = ?", room.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	var stored models.Room
	db.First(&stored, room.ID)
	assert.Equal(t, models.RoomStatusPlaying, stored.Status)

	assert.True(t, fb.has(EventNarration))
	assert.True(t, fb.has(EventRoomState))
}

func TestSession_Start_OnlyHost(t *testing.T) {
	session, _, _, _, _ := setupSessionTest(t, "survival", "alice", "bob")

	err := session.Start(context.Background(), 2)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotHost))
}

func TestSession_SurvivalDeathScenario(t *testing.T) {
	session, fn, _, db, room := setupSessionTest(t, "survival", "alice", "bob", "carol", "dave")
	fn.script = []string{
		"The blizzard closes in around the four of you.",
		"You travel through the snow. [PLAYER_DEATH]",
	}

	require.NoError(t, session.Start(context.Background(), 1))

	// alice提交行动，叙事返回死亡标记
	err := session.SubmitAction(context.Background(), 1, "I travel 5 miles north")
	require.NoError(t, err)

	state := session.State()

	// alice死亡
	players := state["players"].([]map[string]interface{})
	assert.Equal(t, models.PlayerStatusDead, players[0]["status"])

	// 回合推进到下一个存活玩家
	assert.Equal(t, "bob", state["current_player"])

	// 进度推进一次
	progress := state["progress"].(map[string]int)
	assert.Equal(t, 1, progress["milesTraveled"])

	// 展示文本已剥离控制标记
	var seg models.StorySegment
	db.Where("room_id = ?", room.ID).Order("seq DESC").First(&seg)
	assert.Equal(t, "You travel through the snow.", seg.NarrationText)
	assert.Equal(t, "I travel 5 miles north", seg.PlayerInput)

	// 死亡状态落库
	var dead models.RoomPlayer
	db.Where("room_id = ? AND username = ?", room.ID, "alice").First(&dead)
	assert.Equal(t, models.PlayerStatusDead, dead.Status)
}

func TestSession_SinglePlayerDeathEndsGame(t *testing.T) {
	session, fn, fb, db, room := setupSessionTest(t, "horror", "alice")
	fn.script = []string{
		"You are alone in the house.",
		"The shadow finds you. [PLAYER_DEATH]",
	}

	require.NoError(t, session.Start(context.Background(), 1))
	require.NoError(t, session.SubmitAction(context.Background(), 1, "hide in the closet"))

	state := session.State()
	assert.Equal(t, "ended", state["phase"])
	assert.True(t, fb.has(EventGameEnded))

	var stored models.Room
	db.First(&stored, room.ID)
	assert.Equal(t, models.RoomStatusEnded, stored.Status)
	assert.NotNil(t, stored.EndedAt)

	// 结束后不再接受行动
	err := session.SubmitAction(context.Background(), 1, "anything")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrGameEnded))
}

func TestSession_DeathAppliedBeforeGameEnd(t *testing.T) {
	session, fn, _, _, _ := setupSessionTest(t, "horror", "alice", "bob")
	fn.script = []string{
		"The house looms.",
		"Your story concludes here. [PLAYER_DEATH] [GAME_ENDED]",
	}

	require.NoError(t, session.Start(context.Background(), 1))
	require.NoError(t, session.SubmitAction(context.Background(), 1, "open the door"))

	state := session.State()
	assert.Equal(t, "ended", state["phase"])

	// 两个信号独立生效：死亡先应用，结局再应用
	players := state["players"].([]map[string]interface{})
	assert.Equal(t, models.PlayerStatusDead, players[0]["status"])
	assert.Equal(t, models.PlayerStatusAlive, players[1]["status"])
}

func TestSession_NotYourTurn(t *testing.T) {
	session, fn, _, _, _ := setupSessionTest(t, "survival", "alice", "bob")
	fn.script = []string{"Opening."}
	require.NoError(t, session.Start(context.Background(), 1))

	err := session.SubmitAction(context.Background(), 2, "act out of turn")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotYourTurn))
}

func TestSession_DegradedNarrationKeepsRoomActionable(t *testing.T) {
	session, fn, _, _, _ := setupSessionTest(t, "survival", "alice", "bob")
	fn.script = []string{"Opening."}
	require.NoError(t, session.Start(context.Background(), 1))

	// 之后全部降级
	fn.degraded = true

	err := session.SubmitAction(context.Background(), 1, "look around")
	require.NoError(t, err)

	state := session.State()
	assert.Equal(t, "playing", state["phase"])
	assert.Equal(t, "bob", state["current_player"])

	// busy标志已清除，下一个玩家可以继续行动
	err = session.SubmitAction(context.Background(), 2, "keep moving")
	require.NoError(t, err)
}

func TestSession_BusyFlagSingleFlight(t *testing.T) {
	session, fn, _, _, _ := setupSessionTest(t, "survival", "alice", "bob")
	fn.script = []string{"Opening.", "Slow narration.", "After release."}
	require.NoError(t, session.Start(context.Background(), 1))
	<-fn.started // 清掉开篇生成的信号

	fn.blockCh = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- session.SubmitAction(context.Background(), 1, "slow action")
	}()

	// 等待生成真正开始
	<-fn.started

	// 生成期间的并发提交被单飞标志拒绝
	err := session.SubmitAction(context.Background(), 1, "second action")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrGenerationBusy))

	close(fn.blockCh)
	require.NoError(t, <-done)
	fn.blockCh = nil

	// 生成完成后恢复可用
	err = session.SubmitAction(context.Background(), 2, "next action")
	require.NoError(t, err)
}

func TestSession_ReconcileIntroducesNewPlayer(t *testing.T) {
	session, fn, fb, db, room := setupSessionTest(t, "fantasy", "alice", "bob")
	fn.script = []string{
		"The quest begins.",
		"A stranger steps out of the mist: erin joins the party.",
	}
	require.NoError(t, session.Start(context.Background(), 1))

	snapshot := []*Player{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob"},
		{ID: 5, Username: "erin"},
	}
	require.NoError(t, session.ReconcilePresence(context.Background(), snapshot, false))

	// 引入叙事带上了新玩家名单
	call := fn.lastCall()
	require.NotNil(t, call)
	assert.Equal(t, []string{"erin"}, call.NewPlayers)

	// 新玩家落库并广播
	var count int64
	db.Model(&models.RoomPlayer{}).Where("room_id = ?", room.ID).Count(&count)
	assert.Equal(t, int64(3), count)
	assert.True(t, fb.has(EventPlayerJoined))

	// 重复投递同一快照幂等
	calls := len(fn.calls)
	require.NoError(t, session.ReconcilePresence(context.Background(), snapshot, false))
	assert.Equal(t, calls, len(fn.calls))
	db.Model(&models.RoomPlayer{}).Where("room_id = ?", room.ID).Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestSession_AutoStartWhenFull(t *testing.T) {
	session, fn, _, _, _ := setupSessionTest(t, "survival", "alice", "bob", "carol")
	fn.script = []string{"The four of you set out together."}

	snapshot := []*Player{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob"},
		{ID: 3, Username: "carol"},
		{ID: 4, Username: "dave"},
	}
	require.NoError(t, session.ReconcilePresence(context.Background(), snapshot, true))

	// 缓冲窗口结束后自动开局
	require.Eventually(t, func() bool {
		return session.State()["phase"] == "playing"
	}, time.Second, 10*time.Millisecond)
}

func TestSession_CurrentPlayerLeavesMidGame(t *testing.T) {
	session, fn, _, db, room := setupSessionTest(t, "survival", "alice", "bob")
	fn.script = []string{"Opening.", "You press on.", "Alone in the snow."}
	require.NoError(t, session.Start(context.Background(), 1))
	require.NoError(t, session.SubmitAction(context.Background(), 1, "scout ahead"))

	// 轮到bob时bob退出
	state := session.State()
	require.Equal(t, "bob", state["current_player"])
	require.NoError(t, session.Leave(context.Background(), 2))

	// 指针回落到存活的alice，房间没有卡死
	state = session.State()
	assert.Equal(t, "playing", state["phase"])
	assert.Equal(t, "alice", state["current_player"])
	require.NoError(t, session.SubmitAction(context.Background(), 1, "keep moving"))

	// 校正后的指针落库
	var stored models.Room
	db.First(&stored, room.ID)
	assert.Equal(t, 0, stored.TurnIndex)
}

func TestSession_QueuedJoinerIntroducedByNextNarration(t *testing.T) {
	session, fn, _, _, _ := setupSessionTest(t, "survival", "alice", "bob")
	fn.script = []string{"Opening.", "Slow narration.", "The camp stirs.", "Onward."}
	require.NoError(t, session.Start(context.Background(), 1))
	<-fn.started

	fn.blockCh = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- session.SubmitAction(context.Background(), 1, "slow action")
	}()
	<-fn.started

	// 生成期间erin加入：只入队，不打断进行中的生成
	snapshot := []*Player{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob"},
		{ID: 5, Username: "erin"},
	}
	require.NoError(t, session.ReconcilePresence(context.Background(), snapshot, false))

	close(fn.blockCh)
	require.NoError(t, <-done)
	fn.blockCh = nil

	// busy清除后的下一段叙事带上队列中的erin
	require.NoError(t, session.SubmitAction(context.Background(), 2, "wake the others"))
	call := fn.lastCall()
	require.NotNil(t, call)
	assert.Equal(t, []string{"erin"}, call.NewPlayers)

	// 只引入一次
	require.NoError(t, session.SubmitAction(context.Background(), 5, "look around"))
	assert.Empty(t, fn.lastCall().NewPlayers)
}

func TestSession_Transcript(t *testing.T) {
	session, fn, _, _, _ := setupSessionTest(t, "survival", "alice", "bob")
	fn.script = []string{"A", "B"}
	require.NoError(t, session.Start(context.Background(), 1))
	require.NoError(t, session.SubmitAction(context.Background(), 1, "go north"))

	transcript := session.Transcript()
	assert.Contains(t, transcript, "A")
	assert.Contains(t, transcript, "> go north")
	assert.Contains(t, transcript, "B")
}

func TestSession_Leave(t *testing.T) {
	session, fn, fb, db, room := setupSessionTest(t, "survival", "alice", "bob")
	fn.script = []string{"Opening."}
	require.NoError(t, session.Start(context.Background(), 1))

	require.NoError(t, session.Leave(context.Background(), 2))
	assert.True(t, fb.has(EventPlayerLeft))

	var player models.RoomPlayer
	db.Where("room_id = ? AND user_id = ?", room.ID, 2).First(&player)
	assert.True(t, player.Left)

	// 不在房间的玩家退出报错
	err := session.Leave(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrPlayerNotInRoom))
}
