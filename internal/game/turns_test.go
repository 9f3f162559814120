package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourPlayers() []*Player {
	return []*Player{
		{ID: 1, Username: "alice", Alive: true},
		{ID: 2, Username: "bob", Alive: true},
		{ID: 3, Username: "carol", Alive: true},
		{ID: 4, Username: "dave", Alive: true},
	}
}

func TestTurnMachine_Start(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	assert.Equal(t, PhaseLobby, m.Phase())

	m.Start()
	assert.Equal(t, PhasePlaying, m.Phase())
	assert.Equal(t, 0, m.TurnIndex())
	assert.Empty(t, m.DeadNames())
}

func TestTurnMachine_Start_SkipsDeadFirstSeat(t *testing.T) {
	players := fourPlayers()
	players[0].Alive = false
	m := NewTurnMachine(players)

	m.Start()
	assert.Equal(t, 1, m.TurnIndex())
}

func TestTurnMachine_AdvanceTurn_Cyclic(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()

	m.AdvanceTurn()
	assert.Equal(t, 1, m.TurnIndex())
	m.AdvanceTurn()
	assert.Equal(t, 2, m.TurnIndex())
	m.AdvanceTurn()
	assert.Equal(t, 3, m.TurnIndex())
	m.AdvanceTurn()
	assert.Equal(t, 0, m.TurnIndex())
}

func TestTurnMachine_AdvanceTurn_NeverSelectsDead(t *testing.T) {
	players := fourPlayers()
	m := NewTurnMachine(players)
	m.Start()

	m.KillPlayer("bob")
	m.KillPlayer("dave")

	// 多圈推进，指针只落在存活玩家上
	for i := 0; i < 10; i++ {
		m.AdvanceTurn()
		current := m.Current()
		require.NotNil(t, current)
		assert.True(t, current.Alive, "回合指针不应指向死亡玩家: %s", current.Username)
	}
}

func TestTurnMachine_AdvanceTurn_ToleratesFreshlyDeadCurrent(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()

	// 当前占位者刚刚死亡
	m.KillPlayer("alice")
	m.AdvanceTurn()

	assert.Equal(t, "bob", m.Current().Username)
}

func TestTurnMachine_AdvanceTurn_SingleSurvivorKeepsPointer(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()

	m.KillPlayer("alice")
	m.KillPlayer("carol")
	m.KillPlayer("dave")
	m.AdvanceTurn()
	idx := m.TurnIndex()
	assert.Equal(t, "bob", m.Current().Username)

	m.AdvanceTurn()
	assert.Equal(t, idx, m.TurnIndex())
	assert.Equal(t, PhasePlaying, m.Phase())
}

func TestTurnMachine_RemoveSeat_CurrentLeaverRescansToAlive(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()
	m.AdvanceTurn()
	require.Equal(t, "bob", m.Current().Username)

	// 当前占位者退出，指针重落到下一个存活玩家
	m.RemoveSeat(2)
	require.NotNil(t, m.Current())
	assert.Equal(t, "carol", m.Current().Username)
	assert.Equal(t, PhasePlaying, m.Phase())
}

func TestTurnMachine_RemoveSeat_BeforePointerShiftsDown(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()
	m.AdvanceTurn()
	m.AdvanceTurn()
	require.Equal(t, "carol", m.Current().Username)

	// 指针之前的座次退出，指针前移一位仍指向carol
	m.RemoveSeat(1)
	assert.Equal(t, 1, m.TurnIndex())
	assert.Equal(t, "carol", m.Current().Username)
}

func TestTurnMachine_RemoveSeat_LastSeatWrapsAround(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()
	m.AdvanceTurn()
	m.AdvanceTurn()
	m.AdvanceTurn()
	require.Equal(t, "dave", m.Current().Username)

	// 末位座次退出，指针回绕到队首
	m.RemoveSeat(4)
	require.NotNil(t, m.Current())
	assert.Equal(t, "alice", m.Current().Username)
}

func TestTurnMachine_RemoveSeat_SkipsDeadSuccessor(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()
	m.KillPlayer("carol")
	m.AdvanceTurn()
	require.Equal(t, "bob", m.Current().Username)

	// bob退出后落位到已死亡的carol，重扫到dave
	m.RemoveSeat(2)
	require.NotNil(t, m.Current())
	assert.Equal(t, "dave", m.Current().Username)
}

func TestTurnMachine_RemoveSeat_LastAliveLeaverEndsGame(t *testing.T) {
	m := NewTurnMachine([]*Player{
		{ID: 1, Username: "alice", Alive: true},
		{ID: 2, Username: "bob", Alive: false},
	})
	m.Start()

	m.RemoveSeat(1)
	assert.Equal(t, PhaseEnded, m.Phase())
}

func TestTurnMachine_KillPlayer_OneWay(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()

	m.KillPlayer("carol")
	assert.Equal(t, []string{"carol"}, m.DeadNames())

	// 重复死亡不重复记录
	m.KillPlayer("carol")
	assert.Equal(t, []string{"carol"}, m.DeadNames())
}

func TestTurnMachine_AllDeadEndsGame(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()

	m.KillPlayer("alice")
	m.KillPlayer("bob")
	m.KillPlayer("carol")
	assert.Equal(t, PhasePlaying, m.Phase())

	m.KillPlayer("dave")
	assert.Equal(t, PhaseEnded, m.Phase())
	assert.Equal(t, 0, m.TurnIndex())
}

func TestTurnMachine_EndedIsAbsorbing(t *testing.T) {
	m := NewTurnMachine([]*Player{{ID: 1, Username: "alice", Alive: true}})
	m.Start()

	// 单人房间，该玩家死亡立即结束
	m.KillPlayer("alice")
	assert.Equal(t, PhaseEnded, m.Phase())

	// 推进与复查都不能离开ENDED
	m.AdvanceTurn()
	assert.Equal(t, PhaseEnded, m.Phase())
	m.CheckEnd()
	assert.Equal(t, PhaseEnded, m.Phase())

	// 只有显式Start才能重新开始
	for _, p := range m.Players() {
		p.Alive = true
	}
	m.Start()
	assert.Equal(t, PhasePlaying, m.Phase())
}

func TestTurnMachine_CheckEnd_Idempotent(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()

	m.CheckEnd()
	assert.Equal(t, PhasePlaying, m.Phase())

	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		m.KillPlayer(name)
	}
	m.CheckEnd()
	m.CheckEnd()
	assert.Equal(t, PhaseEnded, m.Phase())
}

func TestTurnMachine_JoinAfterDeathDoesNotResurrect(t *testing.T) {
	m := NewTurnMachine(fourPlayers())
	m.Start()
	m.KillPlayer("alice")

	// 新玩家加入不影响已死亡玩家
	merged, _ := Reconcile(m.Players(), []*Player{{ID: 5, Username: "erin"}})
	m.SetPlayers(merged)

	for _, p := range m.Players() {
		if p.Username == "alice" {
			assert.False(t, p.Alive)
		}
		if p.Username == "erin" {
			assert.True(t, p.Alive)
		}
	}
	assert.Equal(t, []string{"alice"}, m.DeadNames())
}
