package game

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// LogEntry 故事日志中的一条段落
type LogEntry struct {
	PlayerName    string
	PlayerInput   string // 系统生成的开篇为空
	NarrationText string
	CreatedAt     time.Time
}

// StoryLog 只追加的故事日志。段落一经追加不再修改或重排，
// 是"已经发生了什么"的唯一事实来源。
type StoryLog struct {
	mu      sync.RWMutex
	title   string
	entries []LogEntry
}

// NewStoryLog 创建故事日志
func NewStoryLog(title string) *StoryLog {
	return &StoryLog{title: title}
}

// Append 追加一条段落
func (l *StoryLog) Append(entry LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	l.entries = append(l.entries, entry)
}

// Len 段落数
func (l *StoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// TrailingWindow 最近n条段落，按时间顺序
func (l *StoryLog) TrailingWindow(n int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || len(l.entries) == 0 {
		return nil
	}
	start := len(l.entries) - n
	if start < 0 {
		start = 0
	}

	window := make([]LogEntry, len(l.entries)-start)
	copy(window, l.entries[start:])
	return window
}

// All 全部段落的副本，按时间顺序
func (l *StoryLog) All() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := make([]LogEntry, len(l.entries))
	copy(all, l.entries)
	return all
}

// Reset 清空日志（重新开局时使用）
func (l *StoryLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// ExportTranscript 导出纯文本剧本。标题行开头，按时间顺序每段落
// 先输出触发它的"> 玩家输入"引用行（若有），再输出叙事文本，
// 段落间空行分隔。
func (l *StoryLog) ExportTranscript() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n\n", l.title)

	for _, entry := range l.entries {
		if entry.PlayerInput != "" {
			fmt.Fprintf(&b, "> %s\n", entry.PlayerInput)
		}
		b.WriteString(entry.NarrationText)
		b.WriteString("\n\n")
	}

	return b.String()
}
