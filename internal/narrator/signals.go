package narrator

import (
	"regexp"
	"strings"
)

// Signals 从叙事文本中解析出的控制信号
type Signals struct {
	Death     bool // 当前玩家死亡
	GameEnded bool
}

// Detector 控制信号检测器。检测并从文本中剥离信号标记，
// 返回净化后的展示文本。检测可插拔，状态机不感知具体实现。
type Detector interface {
	Detect(text string) (clean string, signals Signals)
}

// 控制标记
const (
	tokenPlayerDeath = "[PLAYER_DEATH]"
	tokenGameEnded   = "[GAME_ENDED]"
)

// TokenDetector 基于控制标记的检测器。
// 匹配不区分大小写，标记从文本中全局移除。
type TokenDetector struct{}

// NewTokenDetector 创建标记检测器
func NewTokenDetector() *TokenDetector {
	return &TokenDetector{}
}

var (
	deathTokenRe = regexp.MustCompile(`(?i)\[PLAYER_DEATH\]`)
	endTokenRe   = regexp.MustCompile(`(?i)\[GAME_ENDED\]`)
)

// Detect 检测并剥离控制标记
func (d *TokenDetector) Detect(text string) (string, Signals) {
	var sig Signals

	if deathTokenRe.MatchString(text) {
		sig.Death = true
		text = deathTokenRe.ReplaceAllString(text, "")
	}
	if endTokenRe.MatchString(text) {
		sig.GameEnded = true
		text = endTokenRe.ReplaceAllString(text, "")
	}

	return strings.TrimSpace(collapseSpaces(text)), sig
}

// PhraseDetector 基于自然语言死亡短语的检测器。
// 短语只用于判定信号，不从文本中移除（它们本身就是叙事内容）。
type PhraseDetector struct {
	deathPhrases []string
	endPhrases   []string
}

// NewPhraseDetector 创建短语检测器
func NewPhraseDetector() *PhraseDetector {
	return &PhraseDetector{
		deathPhrases: []string{
			"you have died",
			"death claims you",
			"your journey ends here",
			"you breathe your last",
			"you are dead",
		},
		endPhrases: []string{
			"the end.",
			"the story ends",
			"your tale is over",
		},
	}
}

// Detect 检测死亡/结局短语，首个命中即判定
func (d *PhraseDetector) Detect(text string) (string, Signals) {
	var sig Signals
	lower := strings.ToLower(text)

	for _, phrase := range d.deathPhrases {
		if strings.Contains(lower, phrase) {
			sig.Death = true
			break
		}
	}
	for _, phrase := range d.endPhrases {
		if strings.Contains(lower, phrase) {
			sig.GameEnded = true
			break
		}
	}

	return text, sig
}

var multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)

// collapseSpaces 合并剥离标记后留下的连续空格
func collapseSpaces(s string) string {
	return multiSpaceRe.ReplaceAllString(s, " ")
}
