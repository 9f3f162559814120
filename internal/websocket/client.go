package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrClientNotFound 客户端不存在
	ErrClientNotFound = errors.New("客户端不存在")
	// ErrSendBufferFull 发送缓冲区已满
	ErrSendBufferFull = errors.New("发送缓冲区已满")
	// ErrRoomNotSubscribed 房间没有订阅者
	ErrRoomNotSubscribed = errors.New("房间没有订阅者")
)

const (
	// 写超时
	writeWait = 10 * time.Second
	// 读超时（pong等待时间）
	pongWait = 60 * time.Second
	// ping周期，必须小于pongWait
	pingPeriod = (pongWait * 9) / 10
	// 最大消息大小
	maxMessageSize = 4096
)

// Client WebSocket客户端连接
type Client struct {
	// 客户端ID
	ID string

	// 用户信息
	UserID   uint
	Username string

	// 订阅的房间码
	RoomCode string

	// 连接
	Conn *websocket.Conn

	// 发送通道
	Send chan []byte

	// Hub引用
	Hub *Hub

	// 消息处理器
	messageHandler MessageHandler

	// 日志
	logger *zap.Logger
}

// MessageHandler 客户端消息处理器
type MessageHandler func(client *Client, message *Message)

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn, userID uint, username, roomCode string, logger *zap.Logger) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Username: username,
		RoomCode: roomCode,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
		logger:   logger,
	}
}

// SetMessageHandler 设置消息处理器
func (c *Client) SetMessageHandler(handler MessageHandler) {
	c.messageHandler = handler
}

// ReadPump 读取消息循环
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket读取异常",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("消息解析失败",
				zap.String("client_id", c.ID),
				zap.Error(err))
			c.sendError("消息格式错误")
			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump 发送消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// 批量写出积压消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理客户端消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypePing:
		pong := &Message{
			Type:      MessageTypePong,
			Timestamp: time.Now().Unix(),
		}
		c.SendMessage(pong)

	case MessageTypePong:
		// 心跳响应，无需处理

	default:
		if c.messageHandler != nil {
			c.messageHandler(c, msg)
		} else {
			c.logger.Debug("未处理的消息类型",
				zap.String("client_id", c.ID),
				zap.String("type", msg.Type))
		}
	}
}

// SendMessage 发送消息
func (c *Client) SendMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// sendError 发送错误消息
func (c *Client) sendError(text string) {
	data, _ := json.Marshal(map[string]string{"message": text})
	msg := &Message{
		Type:      MessageTypeError,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	c.SendMessage(msg)
}

// Close 关闭连接
func (c *Client) Close() {
	c.Conn.Close()
}
