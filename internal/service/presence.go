package service

import (
	"context"

	"github.com/wfunc/story-game/internal/game"
	"github.com/wfunc/story-game/internal/websocket"
	"go.uber.org/zap"
)

// presenceSync 把WebSocket连接快照同步进游戏会话。
// 实现websocket.PresenceHandler。
type presenceSync struct {
	manager *game.SessionManager
	log     *zap.Logger
}

// NewPresenceSync 创建在场同步器
func NewPresenceSync(manager *game.SessionManager, log *zap.Logger) websocket.PresenceHandler {
	return &presenceSync{manager: manager, log: log}
}

// HandlePresence 把房间连接快照交给会话做成员对账。
// 会话只增不减：瞬断的玩家保留在名单中，显式退出走Leave。
func (p *presenceSync) HandlePresence(roomCode string, snapshot []websocket.PresencePlayer) {
	session, err := p.manager.MustGet(roomCode)
	if err != nil {
		// 房间会话尚未加载，等HTTP层首次访问时再建
		return
	}

	players := make([]*game.Player, 0, len(snapshot))
	hostPresent := false
	for _, pp := range snapshot {
		players = append(players, &game.Player{ID: pp.UserID, Username: pp.Username})
		if pp.UserID == session.HostID() {
			hostPresent = true
		}
	}

	if err := session.ReconcilePresence(context.Background(), players, hostPresent); err != nil {
		p.log.Warn("在场对账失败",
			zap.String("room_code", roomCode),
			zap.Error(err))
	}
}
