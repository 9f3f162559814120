package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub WebSocket连接管理中心。按房间索引客户端，
// 注册/注销事件作为在场信号上报给PresenceHandler，
// 由游戏会话做成员对账。
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 房间码到客户端的映射
	roomClients map[string][]*Client
	roomMu      sync.RWMutex

	// 消息广播通道
	broadcast chan *Message

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client

	// 在场变化回调
	presenceHandler PresenceHandler

	// 日志
	logger *zap.Logger
}

// PresenceHandler 在场变化处理器。
// 客户端进入或离开房间后被调用，快照为该房间当前连接的玩家。
type PresenceHandler interface {
	HandlePresence(roomCode string, snapshot []PresencePlayer)
}

// PresencePlayer 在场快照中的玩家
type PresencePlayer struct {
	UserID   uint
	Username string
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"` // 消息类型
	RoomCode  string          `json:"room_code,omitempty"`
	UserID    uint            `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data"`      // 消息数据
	Timestamp int64           `json:"timestamp"` // 时间戳
}

// MessageType 消息类型
const (
	// 系统消息
	MessageTypeConnected    = "connected"
	MessageTypeDisconnected = "disconnected"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"

	// 游戏消息
	MessageTypeRoomState    = "room_state"
	MessageTypePlayerJoined = "player_joined"
	MessageTypePlayerLeft   = "player_left"
	MessageTypeNarration    = "narration"
	MessageTypeTurn         = "turn"
	MessageTypeGameEnded    = "game_ended"
)

// NewHub 创建Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		roomClients: make(map[string][]*Client),
		broadcast:   make(chan *Message, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		logger:      logger,
	}
}

// SetPresenceHandler 设置在场变化处理器
func (h *Hub) SetPresenceHandler(handler PresenceHandler) {
	h.presenceHandler = handler
}

// Run 运行Hub
func (h *Hub) Run() {
	// 启动心跳检测
	go h.runHeartbeat()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	// 添加到房间映射
	if client.RoomCode != "" {
		h.roomMu.Lock()
		h.roomClients[client.RoomCode] = append(h.roomClients[client.RoomCode], client)
		h.roomMu.Unlock()
	}

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.Uint("user_id", client.UserID),
		zap.String("room_code", client.RoomCode))

	// 发送连接成功消息
	msg := &Message{
		Type:      MessageTypeConnected,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"message":"连接成功"}`),
	}
	h.SendToClient(client.ID, msg)

	h.notifyPresence(client.RoomCode)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	// 从房间映射中移除
	if client.RoomCode != "" {
		h.roomMu.Lock()
		clients := h.roomClients[client.RoomCode]
		for i, c := range clients {
			if c.ID == client.ID {
				h.roomClients[client.RoomCode] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.roomClients[client.RoomCode]) == 0 {
			delete(h.roomClients, client.RoomCode)
		}
		h.roomMu.Unlock()
	}

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.Uint("user_id", client.UserID),
		zap.String("room_code", client.RoomCode))

	h.notifyPresence(client.RoomCode)
}

// notifyPresence 上报房间在场快照
func (h *Hub) notifyPresence(roomCode string) {
	if roomCode == "" || h.presenceHandler == nil {
		return
	}
	h.presenceHandler.HandlePresence(roomCode, h.RoomSnapshot(roomCode))
}

// RoomSnapshot 房间当前连接玩家的快照（按用户去重）
func (h *Hub) RoomSnapshot(roomCode string) []PresencePlayer {
	h.roomMu.RLock()
	defer h.roomMu.RUnlock()

	seen := make(map[uint]bool)
	var snapshot []PresencePlayer
	for _, client := range h.roomClients[roomCode] {
		if client.UserID == 0 || seen[client.UserID] {
			continue
		}
		seen[client.UserID] = true
		snapshot = append(snapshot, PresencePlayer{
			UserID:   client.UserID,
			Username: client.Username,
		})
	}
	return snapshot
}

// broadcastMessage 广播消息。RoomCode非空时只发给该房间的客户端。
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	if message.RoomCode != "" {
		h.roomMu.RLock()
		clients := append([]*Client(nil), h.roomClients[message.RoomCode]...)
		h.roomMu.RUnlock()

		for _, client := range clients {
			select {
			case client.Send <- data:
			default:
				h.logger.Warn("客户端发送缓冲区满",
					zap.String("client_id", client.ID))
			}
		}
		return
	}

	h.clientsMu.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("客户端发送缓冲区满",
				zap.String("client_id", client.ID))
		}
	}
	h.clientsMu.RUnlock()
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	client, ok := h.clients[clientID]
	h.clientsMu.RUnlock()

	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToRoom 发送消息给指定房间的所有客户端
func (h *Hub) SendToRoom(roomCode string, message *Message) error {
	message.RoomCode = roomCode
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.roomMu.RLock()
	clients := append([]*Client(nil), h.roomClients[roomCode]...)
	h.roomMu.RUnlock()

	if len(clients) == 0 {
		return ErrRoomNotSubscribed
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("房间客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("room_code", roomCode))
		}
	}
	return nil
}

// Broadcast 房间事件广播，实现game.Broadcaster接口
func (h *Hub) Broadcast(roomCode string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("序列化事件失败",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	h.broadcast <- &Message{
		Type:      event,
		RoomCode:  roomCode,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// GetOnlineCount 获取在线人数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// GetRoomCount 获取有订阅者的房间数
func (h *Hub) GetRoomCount() int {
	h.roomMu.RLock()
	defer h.roomMu.RUnlock()
	return len(h.roomClients)
}

// runHeartbeat 运行心跳检测
func (h *Hub) runHeartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		<-ticker.C
		ping := &Message{
			Type:      MessageTypePing,
			Timestamp: time.Now().Unix(),
		}
		h.broadcast <- ping
	}
}

// Register 注册客户端（公开方法）
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端（公开方法）
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
