package narrator

import "context"

// StoryPhase 故事阶段
type StoryPhase string

const (
	PhaseOpening    StoryPhase = "opening"    // 开篇
	PhaseRising     StoryPhase = "rising"     // 铺垫
	PhaseClimax     StoryPhase = "climax"     // 高潮
	PhaseResolution StoryPhase = "resolution" // 收束
)

// PhaseForSegmentCount 根据已有段落数推导故事阶段
func PhaseForSegmentCount(n int) StoryPhase {
	switch {
	case n < 3:
		return PhaseOpening
	case n < 6:
		return PhaseRising
	case n < 9:
		return PhaseClimax
	default:
		return PhaseResolution
	}
}

// Segment 传给叙事服务的历史段落
type Segment struct {
	PlayerInput   string
	NarrationText string
}

// Context 一次叙事请求的完整上下文
type Context struct {
	Genre         string
	AlivePlayers  []string
	DeadPlayers   []string // 按死亡顺序，最后一个为最近死亡
	NewPlayers    []string // 需要在剧情中被引入的新玩家
	History       []Segment
	CurrentPlayer string
	PlayerInput   string
	Mode          string   // free_text, multiple_choice
	Tone          string
	Phase         StoryPhase
	PacingGoal    string
}

// Result 叙事结果。Degraded为true时Text为兜底文本，
// 调用方不应将其当作错误处理。
type Result struct {
	Text      string
	DeathOf   string // 非空表示当前玩家死亡信号
	GameEnded bool
	Degraded  bool
	Attempts  int
}

// Client 叙事服务客户端接口
type Client interface {
	Generate(ctx context.Context, nc *Context) (*Result, error)
}
