package game

import (
	"context"
	"strings"
	"sync"

	"github.com/wfunc/story-game/internal/errors"
)

// RoomLoader 按房间码加载房间记录（含玩家）并构建会话
type RoomLoader func(ctx context.Context, code string) (*Session, error)

// SessionManager 进程内的会话注册表。每个房间码对应唯一会话实例，
// 跨客户端的并发触发在会话内被串行化。
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	loader   RoomLoader
}

// NewSessionManager 创建会话管理器
func NewSessionManager(loader RoomLoader) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		loader:   loader,
	}
}

// Get 获取已有会话，不存在时从存储加载
func (m *SessionManager) Get(ctx context.Context, code string) (*Session, error) {
	code = strings.ToUpper(code)

	m.mu.Lock()
	if session, ok := m.sessions[code]; ok {
		m.mu.Unlock()
		return session, nil
	}
	m.mu.Unlock()

	// 加载不持有管理器锁，避免慢查询阻塞其他房间
	session, err := m.loader(ctx, code)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[code]; ok {
		// 并发加载时保留先注册的实例
		return existing, nil
	}
	m.sessions[code] = session
	return session, nil
}

// Put 注册新建房间的会话
func (m *SessionManager) Put(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[strings.ToUpper(session.Code())] = session
}

// Remove 移除会话（房间关闭时）
func (m *SessionManager) Remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, strings.ToUpper(code))
}

// Count 当前活跃会话数
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MustGet 获取已注册会话，未注册返回房间不存在错误
func (m *SessionManager) MustGet(code string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[strings.ToUpper(code)]
	if !ok {
		return nil, errors.New(errors.ErrRoomNotFound)
	}
	return session, nil
}
