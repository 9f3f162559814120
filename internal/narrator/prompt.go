package narrator

import (
	"fmt"
	"strings"
)

// BuildPrompt 根据游戏上下文构造叙事提示词。
// 语态、死亡确认、新玩家引入和输出格式的规则都在这里，
// 状态机不关心提示词细节。
func BuildPrompt(nc *Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the narrator of a cooperative %s story. ", nc.Genre)
	if nc.Tone != "" {
		fmt.Fprintf(&b, "Keep the tone %s. ", nc.Tone)
	}
	fmt.Fprintf(&b, "The story is in its %s phase. ", nc.Phase)
	if nc.PacingGoal != "" {
		fmt.Fprintf(&b, "Pacing goal: %s. ", nc.PacingGoal)
	}
	b.WriteString("\n\n")

	// 语态随存活人数变化
	switch len(nc.AlivePlayers) {
	case 0:
		b.WriteString("Every player has died. Narrate a conclusion to the story.\n")
	case 1:
		fmt.Fprintf(&b, "Only %s remains. Address them directly in the second person singular.\n", nc.AlivePlayers[0])
	case 2:
		fmt.Fprintf(&b, "Two players remain: %s and %s. Address them together as \"you both\" or by name.\n",
			nc.AlivePlayers[0], nc.AlivePlayers[1])
	default:
		fmt.Fprintf(&b, "The group consists of: %s. Address the group by these names.\n",
			strings.Join(nc.AlivePlayers, ", "))
	}

	// 确认最近死亡的玩家
	if len(nc.DeadPlayers) > 0 {
		recent := nc.DeadPlayers[len(nc.DeadPlayers)-1]
		fmt.Fprintf(&b, "Acknowledge in the narrative that %s has died.\n", recent)
	}

	// 引入新加入的玩家
	if len(nc.NewPlayers) > 0 {
		fmt.Fprintf(&b, "New characters have just arrived and must be introduced into the scene: %s.\n",
			strings.Join(nc.NewPlayers, ", "))
	}

	// 历史窗口
	if len(nc.History) > 0 {
		b.WriteString("\nStory so far:\n")
		for _, seg := range nc.History {
			if seg.PlayerInput != "" {
				fmt.Fprintf(&b, "Player: %s\n", seg.PlayerInput)
			}
			fmt.Fprintf(&b, "Narrator: %s\n", seg.NarrationText)
		}
	}

	// 当前玩家输入：有输入则必须直接承接，否则推动环境事件
	b.WriteString("\n")
	if nc.PlayerInput != "" {
		fmt.Fprintf(&b, "It is %s's turn. Their action: \"%s\". Build the narration directly on this action.\n",
			nc.CurrentPlayer, nc.PlayerInput)
	} else {
		b.WriteString("No player action this turn. Continue with an event driven by the environment.\n")
	}

	// 输出格式随模式变化
	if nc.Mode == "multiple_choice" {
		b.WriteString("Write the narration as prose, then offer 3-5 options as a numbered list introduced by a line reading exactly \"Choices:\".\n")
	} else {
		b.WriteString("Write the narration as prose only. Do not enumerate options.\n")
	}

	b.WriteString("Target roughly 50-100 words for the narration.\n")

	return b.String()
}
