package game

// Phase 游戏生命周期阶段
type Phase string

const (
	PhaseLobby   Phase = "lobby"   // 等待玩家
	PhasePlaying Phase = "playing" // 进行中
	PhaseEnded   Phase = "ended"   // 已结束
)

// Player 回合状态机中的玩家视图
type Player struct {
	ID       uint
	Username string
	Alive    bool
}

// Broadcaster 房间事件广播接口，由websocket Hub实现
type Broadcaster interface {
	Broadcast(roomCode string, event string, payload interface{})
}

// 广播事件类型
const (
	EventRoomState    = "room_state"
	EventPlayerJoined = "player_joined"
	EventPlayerLeft   = "player_left"
	EventNarration    = "narration"
	EventTurn         = "turn"
	EventGameEnded    = "game_ended"
)
