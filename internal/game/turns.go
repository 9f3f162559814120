package game

// TurnMachine 回合与生死状态机。
// 持有一个房间的有序玩家列表、回合指针和生命周期阶段。
// 不做任何IO，由会话控制器驱动并负责持久化。
type TurnMachine struct {
	players   []*Player
	turnIndex int
	phase     Phase
	deadOrder []string // 按死亡先后排列的玩家名
}

// NewTurnMachine 创建回合状态机
func NewTurnMachine(players []*Player) *TurnMachine {
	return &TurnMachine{
		players: players,
		phase:   PhaseLobby,
	}
}

// Start 开始游戏。指针重置到第一个存活玩家，清空死亡列表。
func (m *TurnMachine) Start() {
	m.phase = PhasePlaying
	m.deadOrder = nil
	m.turnIndex = 0
	for i, p := range m.players {
		if p.Alive {
			m.turnIndex = i
			break
		}
	}
	m.CheckEnd()
}

// Phase 当前阶段
func (m *TurnMachine) Phase() Phase {
	return m.phase
}

// TurnIndex 当前回合指针
func (m *TurnMachine) TurnIndex() int {
	return m.turnIndex
}

// SetTurnIndex 恢复回合指针（从持久化状态加载时使用）
func (m *TurnMachine) SetTurnIndex(i int) {
	if i >= 0 && i < len(m.players) {
		m.turnIndex = i
	}
}

// SetPhase 恢复生命周期阶段（从持久化状态加载时使用）
func (m *TurnMachine) SetPhase(p Phase) {
	m.phase = p
}

// Players 有序玩家列表
func (m *TurnMachine) Players() []*Player {
	return m.players
}

// SetPlayers 替换玩家列表（成员同步后调用）
func (m *TurnMachine) SetPlayers(players []*Player) {
	m.players = players
}

// RemoveSeat 移除指定玩家的座次并校正回合指针。
// 被移除座次在指针之前时指针前移一位；被移除的正是当前
// 占位者时，指针落位后从该座次起重扫到下一个存活玩家，
// 保证只要还有人存活指针就指向存活玩家。
func (m *TurnMachine) RemoveSeat(id uint) {
	idx := -1
	for i, p := range m.players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	m.players = RemovePlayer(m.players, id)
	if len(m.players) == 0 {
		m.turnIndex = 0
		m.CheckEnd()
		return
	}

	if idx < m.turnIndex {
		m.turnIndex--
	}
	if m.turnIndex >= len(m.players) {
		m.turnIndex = 0
	}

	// 新落位的占位者可能已死亡
	if m.aliveCount() > 0 && !m.players[m.turnIndex].Alive {
		n := len(m.players)
		for step := 0; step < n; step++ {
			i := (m.turnIndex + step) % n
			if m.players[i].Alive {
				m.turnIndex = i
				break
			}
		}
	}

	m.CheckEnd()
}

// Current 当前回合玩家，无人时返回nil
func (m *TurnMachine) Current() *Player {
	if len(m.players) == 0 || m.turnIndex < 0 || m.turnIndex >= len(m.players) {
		return nil
	}
	return m.players[m.turnIndex]
}

// AdvanceTurn 推进到下一个存活玩家。
// 无人存活时转入ENDED；仅剩一人时指针原地不动。
// 容忍当前占位者刚刚死亡的情况。
func (m *TurnMachine) AdvanceTurn() {
	if m.aliveCount() == 0 {
		m.phase = PhaseEnded
		return
	}

	n := len(m.players)
	for step := 1; step <= n; step++ {
		idx := (m.turnIndex + step) % n
		if m.players[idx].Alive {
			m.turnIndex = idx
			return
		}
	}

	// 只剩当前玩家存活，指针不动
}

// KillPlayer 标记玩家死亡。单向转换，重复调用无效果。
// 存活集清空时转入ENDED并重置指针为0哨兵值。
func (m *TurnMachine) KillPlayer(username string) {
	for _, p := range m.players {
		if p.Username == username && p.Alive {
			p.Alive = false
			m.deadOrder = append(m.deadOrder, username)
			break
		}
	}

	if m.aliveCount() == 0 {
		m.phase = PhaseEnded
		m.turnIndex = 0
	}
}

// CheckEnd 幂等的结束检查。死亡与回合推进由两条独立路径上报，
// 每次变更后重查一次防止状态脱节。
func (m *TurnMachine) CheckEnd() {
	if m.phase == PhasePlaying && m.aliveCount() == 0 {
		m.phase = PhaseEnded
	}
}

// AliveNames 存活玩家名列表（按座次）
func (m *TurnMachine) AliveNames() []string {
	var names []string
	for _, p := range m.players {
		if p.Alive {
			names = append(names, p.Username)
		}
	}
	return names
}

// DeadNames 死亡玩家名列表（按死亡顺序）
func (m *TurnMachine) DeadNames() []string {
	return m.deadOrder
}

// RestoreDead 从持久化状态恢复死亡列表
func (m *TurnMachine) RestoreDead(names []string) {
	m.deadOrder = names
}

func (m *TurnMachine) aliveCount() int {
	count := 0
	for _, p := range m.players {
		if p.Alive {
			count++
		}
	}
	return count
}
