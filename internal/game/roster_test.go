package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_NewPlayers(t *testing.T) {
	known := []*Player{
		{ID: 1, Username: "alice", Alive: true},
	}
	snapshot := []*Player{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob"},
	}

	merged, newlyJoined := Reconcile(known, snapshot)
	require.Len(t, merged, 2)
	assert.Equal(t, []string{"bob"}, newlyJoined)
	assert.True(t, merged[1].Alive)
}

func TestReconcile_Idempotent(t *testing.T) {
	known := []*Player{
		{ID: 1, Username: "alice", Alive: true},
	}
	snapshot := []*Player{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob"},
	}

	merged, newlyJoined := Reconcile(known, snapshot)
	assert.Len(t, newlyJoined, 1)

	// 重复投递同一快照：名单不变，无新玩家
	merged2, newlyJoined2 := Reconcile(merged, snapshot)
	assert.Equal(t, merged, merged2)
	assert.Empty(t, newlyJoined2)
}

func TestReconcile_PreservesStatusByID(t *testing.T) {
	known := []*Player{
		{ID: 1, Username: "alice", Alive: false},
		{ID: 2, Username: "bob", Alive: true},
	}
	// alice重连出现在快照中
	snapshot := []*Player{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob"},
	}

	merged, newlyJoined := Reconcile(known, snapshot)
	assert.Empty(t, newlyJoined)

	// 重连不复活
	assert.False(t, merged[0].Alive)
	assert.True(t, merged[1].Alive)
}

func TestReconcile_AbsenteesRetained(t *testing.T) {
	known := []*Player{
		{ID: 1, Username: "alice", Alive: true},
		{ID: 2, Username: "bob", Alive: true},
	}
	// bob瞬断，不在快照中
	snapshot := []*Player{
		{ID: 1, Username: "alice"},
	}

	merged, newlyJoined := Reconcile(known, snapshot)
	assert.Empty(t, newlyJoined)
	require.Len(t, merged, 2)
	assert.Equal(t, "bob", merged[1].Username)
}

func TestReconcile_OrderStable(t *testing.T) {
	known := []*Player{
		{ID: 3, Username: "carol", Alive: true},
		{ID: 1, Username: "alice", Alive: true},
	}
	snapshot := []*Player{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob"},
		{ID: 3, Username: "carol"},
	}

	// 已知玩家保持原座次，新玩家追加在末尾
	merged, newlyJoined := Reconcile(known, snapshot)
	require.Len(t, merged, 3)
	assert.Equal(t, "carol", merged[0].Username)
	assert.Equal(t, "alice", merged[1].Username)
	assert.Equal(t, "bob", merged[2].Username)
	assert.Equal(t, []string{"bob"}, newlyJoined)
}

func TestRemovePlayer(t *testing.T) {
	known := []*Player{
		{ID: 1, Username: "alice", Alive: true},
		{ID: 2, Username: "bob", Alive: true},
	}

	result := RemovePlayer(known, 1)
	require.Len(t, result, 1)
	assert.Equal(t, "bob", result[0].Username)

	// 不存在的ID无效果
	result = RemovePlayer(result, 99)
	assert.Len(t, result, 1)
}
