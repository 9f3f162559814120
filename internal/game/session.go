package game

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/story-game/internal/errors"
	"github.com/wfunc/story-game/internal/logger"
	"github.com/wfunc/story-game/internal/models"
	"github.com/wfunc/story-game/internal/narrator"
	"github.com/wfunc/story-game/internal/repository"
	"go.uber.org/zap"
)

// Deps 会话依赖
type Deps struct {
	Narrator       narrator.Client
	Rooms          repository.RoomRepository
	Players        repository.RoomPlayerRepository
	Segments       repository.StorySegmentRepository
	Broadcaster    Broadcaster
	HistoryWindow  int           // 传给叙事服务的历史段数
	StartCountdown time.Duration // 满员自动开局的缓冲时间
	Tone           string
	PacingGoal     string
}

// Session 单个房间的游戏会话控制器。
// 服务端持有房间状态的唯一权威副本，会话内互斥锁串行化
// 开局、新玩家引入和回合推进三类触发，叙事生成期间由busy
// 标志做单飞保护，生成结束无论成败都会清除标志。
type Session struct {
	mu sync.Mutex

	roomID     uint
	code       string
	genre      string
	mode       string
	hostID     uint
	maxPlayers int

	machine  *TurnMachine
	log      *StoryLog
	progress map[string]int

	busy       bool
	pendingNew []string // 等待剧情引入的新玩家
	startTimer *time.Timer

	deps Deps
	zlog *zap.Logger
}

// 叙事触发类型
const (
	triggerOpening      = "opening"
	triggerIntroduction = "introduction"
	triggerContinuation = "continuation"
)

// NewSession 从已加载的房间记录构建会话。
// room需预加载Players；历史段落从仓储恢复。
func NewSession(ctx context.Context, room *models.Room, deps Deps) (*Session, error) {
	if deps.HistoryWindow <= 0 {
		deps.HistoryWindow = 10
	}
	if deps.StartCountdown <= 0 {
		deps.StartCountdown = time.Second
	}

	players := make([]*Player, 0, len(room.Players))
	var dead []string
	for _, p := range room.Players {
		players = append(players, &Player{
			ID:       p.UserID,
			Username: p.Username,
			Alive:    p.IsAlive(),
		})
		if !p.IsAlive() {
			dead = append(dead, p.Username)
		}
	}

	machine := NewTurnMachine(players)
	machine.SetPhase(Phase(room.Status))
	machine.SetTurnIndex(room.TurnIndex)
	machine.RestoreDead(dead)

	storyLog := NewStoryLog(room.Genre + " story " + room.Code)
	segments, err := deps.Segments.GetByRoom(ctx, room.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	for _, seg := range segments {
		storyLog.Append(LogEntry{
			PlayerName:    seg.PlayerName,
			PlayerInput:   seg.PlayerInput,
			NarrationText: seg.NarrationText,
			CreatedAt:     seg.CreatedAt,
		})
	}

	progress := make(map[string]int)
	for k := range room.Progress {
		progress[k] = room.Progress.GetInt(k)
	}

	return &Session{
		roomID:     room.ID,
		code:       room.Code,
		genre:      room.Genre,
		mode:       room.Mode,
		hostID:     room.HostID,
		maxPlayers: room.MaxPlayers,
		machine:    machine,
		log:        storyLog,
		progress:   progress,
		deps:       deps,
		zlog:       logger.GetModuleLogger("game").With(zap.String("room_code", room.Code)),
	}, nil
}

// Code 房间码
func (s *Session) Code() string {
	return s.code
}

// HostID 房主用户ID
func (s *Session) HostID() uint {
	return s.hostID
}

// Start 开始游戏。只有房主可以发起；从lobby或ended进入playing，
// 重置指针、死亡列表、进度和故事日志，然后生成开篇叙事。
func (s *Session) Start(ctx context.Context, userID uint) error {
	s.mu.Lock()

	if userID != s.hostID {
		s.mu.Unlock()
		return errors.New(errors.ErrNotHost)
	}
	if s.machine.Phase() == PhasePlaying {
		s.mu.Unlock()
		return errors.New(errors.ErrGameAlreadyStarted)
	}
	if s.busy {
		s.mu.Unlock()
		return errors.New(errors.ErrGenerationBusy)
	}

	restart := s.machine.Phase() == PhaseEnded

	// 复活所有玩家后重新开局
	if restart {
		for _, p := range s.machine.Players() {
			p.Alive = true
		}
		s.log.Reset()
	}

	s.machine.Start()
	s.progress = make(map[string]int)
	s.busy = true
	nctx := s.buildNarratorContext("", "")
	players := append([]*Player(nil), s.machine.Players()...)
	turnIndex := s.machine.TurnIndex()
	needOpening := s.log.Len() == 0
	s.mu.Unlock()

	defer s.clearBusy()

	// 持久化开局状态
	if restart {
		if err := s.deps.Segments.DeleteByRoom(ctx, s.roomID); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseDelete)
		}
		for _, p := range players {
			rp, err := s.deps.Players.FindByRoomAndUser(ctx, s.roomID, p.ID)
			if err != nil {
				continue
			}
			rp.Status = models.PlayerStatusAlive
			rp.DiedAt = nil
			s.deps.Players.Update(ctx, rp)
		}
	}
	if err := s.deps.Rooms.UpdateStatus(ctx, s.roomID, models.RoomStatusPlaying); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate)
	}
	if err := s.deps.Rooms.UpdateTurnIndex(ctx, s.roomID, turnIndex); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate)
	}
	s.deps.Rooms.UpdateProgress(ctx, s.roomID, models.JSONMap{})

	s.zlog.Info("游戏开始", zap.Bool("restart", restart))
	s.broadcastState()

	// 开局且无段落时生成开篇
	if needOpening {
		result, err := s.deps.Narrator.Generate(ctx, nctx)
		if err != nil {
			return err
		}
		return s.applyResult(ctx, triggerOpening, "", "", result)
	}
	return nil
}

// SubmitAction 当前玩家提交行动，触发续写叙事，
// 然后推进回合并复查结束条件。
func (s *Session) SubmitAction(ctx context.Context, userID uint, input string) error {
	s.mu.Lock()

	if s.machine.Phase() == PhaseEnded {
		s.mu.Unlock()
		return errors.New(errors.ErrGameEnded)
	}
	if s.machine.Phase() != PhasePlaying {
		s.mu.Unlock()
		return errors.New(errors.ErrGameNotStarted)
	}

	current := s.machine.Current()
	if current == nil || current.ID != userID {
		s.mu.Unlock()
		return errors.New(errors.ErrNotYourTurn)
	}
	if !current.Alive {
		s.mu.Unlock()
		return errors.New(errors.ErrPlayerDead)
	}
	if s.busy {
		s.mu.Unlock()
		return errors.New(errors.ErrGenerationBusy)
	}

	s.busy = true
	playerName := current.Username
	nctx := s.buildNarratorContext(playerName, input)
	s.mu.Unlock()

	defer s.clearBusy()

	result, err := s.deps.Narrator.Generate(ctx, nctx)
	if err != nil {
		return err
	}

	return s.applyResult(ctx, triggerContinuation, playerName, input, result)
}

// ReconcilePresence 处理在场快照。合并名单、持久化新玩家，
// 游戏进行中时立即生成引入叙事；生成正在进行时新玩家先入队，
// busy清除后的下一段叙事负责引入。lobby满员且操作者为房主时
// 经过短暂缓冲后自动开局。
func (s *Session) ReconcilePresence(ctx context.Context, snapshot []*Player, actorIsHost bool) error {
	s.mu.Lock()

	merged, newlyJoined := Reconcile(s.machine.Players(), snapshot)
	s.machine.SetPlayers(merged)

	phase := s.machine.Phase()
	busy := s.busy
	var nctx *narrator.Context
	if len(newlyJoined) > 0 {
		s.pendingNew = append(s.pendingNew, newlyJoined...)
	}
	introduceNow := phase == PhasePlaying && !busy && len(s.pendingNew) > 0
	if introduceNow {
		s.busy = true
		nctx = s.buildNarratorContext("", "")
	}

	// 满员自动开局，缓冲窗口内的后续快照重置计时
	if phase == PhaseLobby && actorIsHost && len(merged) >= s.maxPlayers {
		if s.startTimer != nil {
			s.startTimer.Stop()
		}
		hostID := s.hostID
		s.startTimer = time.AfterFunc(s.deps.StartCountdown, func() {
			if err := s.Start(context.Background(), hostID); err != nil {
				s.zlog.Warn("自动开局失败", zap.Error(err))
			}
		})
	}
	s.mu.Unlock()

	// 持久化新玩家
	for _, name := range newlyJoined {
		var joined *Player
		joinOrder := 0
		for i, p := range merged {
			if p.Username == name {
				joined = p
				joinOrder = i
				break
			}
		}
		if joined == nil {
			continue
		}
		if err := s.deps.Players.Create(ctx, &models.RoomPlayer{
			RoomID:    s.roomID,
			UserID:    joined.ID,
			Username:  joined.Username,
			Status:    models.PlayerStatusAlive,
			JoinOrder: joinOrder,
		}); err != nil {
			s.zlog.Warn("持久化新玩家失败", zap.String("username", name), zap.Error(err))
		}
		s.deps.Broadcaster.Broadcast(s.code, EventPlayerJoined, map[string]interface{}{
			"username": joined.Username,
		})
	}

	if !introduceNow {
		return nil
	}

	defer s.clearBusy()

	result, err := s.deps.Narrator.Generate(ctx, nctx)
	if err != nil {
		return err
	}
	return s.applyResult(ctx, triggerIntroduction, "", "", result)
}

// Leave 玩家显式退出房间。移除座次会同步校正回合指针，
// 退出者正轮到行动时指针重落到下一个存活玩家，新指针落库。
func (s *Session) Leave(ctx context.Context, userID uint) error {
	s.mu.Lock()
	var username string
	for _, p := range s.machine.Players() {
		if p.ID == userID {
			username = p.Username
			break
		}
	}
	if username == "" {
		s.mu.Unlock()
		return errors.New(errors.ErrPlayerNotInRoom)
	}
	s.machine.RemoveSeat(userID)
	turnIndex := s.machine.TurnIndex()
	ended := s.machine.Phase() == PhaseEnded
	state := s.stateLocked()
	s.mu.Unlock()

	if err := s.deps.Players.MarkLeft(ctx, s.roomID, userID); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate)
	}
	if err := s.deps.Rooms.UpdateTurnIndex(ctx, s.roomID, turnIndex); err != nil {
		s.zlog.Error("持久化回合指针失败", zap.Error(err))
	}
	if ended {
		if err := s.deps.Rooms.MarkEnded(ctx, s.roomID); err != nil {
			s.zlog.Error("持久化结束状态失败", zap.Error(err))
		}
	}

	s.deps.Broadcaster.Broadcast(s.code, EventPlayerLeft, map[string]interface{}{
		"username": username,
	})
	s.deps.Broadcaster.Broadcast(s.code, EventRoomState, state)
	if ended {
		s.deps.Broadcaster.Broadcast(s.code, EventGameEnded, state)
	}
	return nil
}

// Transcript 导出剧本
func (s *Session) Transcript() string {
	return s.log.ExportTranscript()
}

// State 当前会话状态快照（API查询用）
func (s *Session) State() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// applyResult 应用一次叙事结果：死亡先于结局处理，进度对每段
// 叙事恰好应用一次，段落落库并广播给房间订阅者。
func (s *Session) applyResult(ctx context.Context, trigger, playerName, input string, result *narrator.Result) error {
	s.mu.Lock()

	// 进度只推进一次
	s.progress = UpdateProgress(s.genre, s.progress, result.Text)

	s.log.Append(LogEntry{
		PlayerName:    playerName,
		PlayerInput:   input,
		NarrationText: result.Text,
	})

	// 死亡信号先于结局信号
	var died string
	if result.DeathOf != "" {
		s.machine.KillPlayer(result.DeathOf)
		died = result.DeathOf
	}
	if result.GameEnded {
		s.machine.SetPhase(PhaseEnded)
	}

	// 续写后推进回合并复查结束
	if trigger == triggerContinuation && s.machine.Phase() == PhasePlaying {
		s.machine.AdvanceTurn()
	}
	s.machine.CheckEnd()

	ended := s.machine.Phase() == PhaseEnded
	turnIndex := s.machine.TurnIndex()
	progressMap := models.JSONMap{}
	for k, v := range s.progress {
		progressMap[k] = v
	}
	state := s.stateLocked()
	s.mu.Unlock()

	// 持久化
	if err := s.deps.Segments.Append(ctx, &models.StorySegment{
		RoomID:        s.roomID,
		PlayerName:    playerName,
		PlayerInput:   input,
		NarrationText: result.Text,
		Degraded:      result.Degraded,
	}); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert)
	}
	if died != "" {
		if err := s.deps.Players.MarkDead(ctx, s.roomID, died); err != nil {
			s.zlog.Error("持久化死亡状态失败", zap.String("username", died), zap.Error(err))
		}
	}
	if err := s.deps.Rooms.UpdateTurnIndex(ctx, s.roomID, turnIndex); err != nil {
		s.zlog.Error("持久化回合指针失败", zap.Error(err))
	}
	if err := s.deps.Rooms.UpdateProgress(ctx, s.roomID, progressMap); err != nil {
		s.zlog.Error("持久化进度失败", zap.Error(err))
	}
	if ended {
		if err := s.deps.Rooms.MarkEnded(ctx, s.roomID); err != nil {
			s.zlog.Error("持久化结束状态失败", zap.Error(err))
		}
	}

	logger.LogGameEvent("narration_applied", s.code, map[string]interface{}{
		"trigger":  trigger,
		"degraded": result.Degraded,
		"died":     died,
		"ended":    ended,
	})

	// 广播
	s.deps.Broadcaster.Broadcast(s.code, EventNarration, map[string]interface{}{
		"text":     result.Text,
		"player":   playerName,
		"input":    input,
		"degraded": result.Degraded,
	})
	if died != "" {
		s.deps.Broadcaster.Broadcast(s.code, EventRoomState, state)
	}
	if ended {
		s.deps.Broadcaster.Broadcast(s.code, EventGameEnded, state)
	} else {
		s.deps.Broadcaster.Broadcast(s.code, EventTurn, map[string]interface{}{
			"turn_index": turnIndex,
		})
	}

	return nil
}

// buildNarratorContext 组装叙事上下文并取走待引入的新玩家队列，
// 生成期间入队的玩家由下一段叙事引入。调用方需持有s.mu。
func (s *Session) buildNarratorContext(currentPlayer, input string) *narrator.Context {
	newPlayers := s.pendingNew
	s.pendingNew = nil

	window := s.log.TrailingWindow(s.deps.HistoryWindow)
	history := make([]narrator.Segment, 0, len(window))
	for _, e := range window {
		history = append(history, narrator.Segment{
			PlayerInput:   e.PlayerInput,
			NarrationText: e.NarrationText,
		})
	}

	return &narrator.Context{
		Genre:         s.genre,
		AlivePlayers:  s.machine.AliveNames(),
		DeadPlayers:   s.machine.DeadNames(),
		NewPlayers:    newPlayers,
		History:       history,
		CurrentPlayer: currentPlayer,
		PlayerInput:   input,
		Mode:          s.mode,
		Tone:          s.deps.Tone,
		Phase:         narrator.PhaseForSegmentCount(s.log.Len()),
		PacingGoal:    s.deps.PacingGoal,
	}
}

// clearBusy 清除单飞标志。走defer路径，生成失败也不会卡死房间。
func (s *Session) clearBusy() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// stateLocked 生成状态快照，调用方需持有s.mu
func (s *Session) stateLocked() map[string]interface{} {
	players := make([]map[string]interface{}, 0, len(s.machine.Players()))
	for _, p := range s.machine.Players() {
		status := models.PlayerStatusAlive
		if !p.Alive {
			status = models.PlayerStatusDead
		}
		players = append(players, map[string]interface{}{
			"user_id":  p.ID,
			"username": p.Username,
			"status":   status,
		})
	}

	progress := map[string]int{}
	for k, v := range s.progress {
		progress[k] = v
	}

	var currentPlayer string
	if c := s.machine.Current(); c != nil {
		currentPlayer = c.Username
	}

	return map[string]interface{}{
		"code":           s.code,
		"genre":          s.genre,
		"mode":           s.mode,
		"phase":          string(s.machine.Phase()),
		"turn_index":     s.machine.TurnIndex(),
		"current_player": currentPlayer,
		"players":        players,
		"progress":       progress,
		"segments":       s.log.Len(),
	}
}

// broadcastState 广播房间状态快照
func (s *Session) broadcastState() {
	s.mu.Lock()
	state := s.stateLocked()
	s.mu.Unlock()
	s.deps.Broadcaster.Broadcast(s.code, EventRoomState, state)
}
