package game

// Reconcile 将权威在场快照合并进已知名单。
//   - 快照中新出现的玩家追加到名单末尾，并作为newlyJoined返回，
//     等待剧情引入；
//   - 已知玩家的生死状态按ID保留，重连不会复活；
//   - 快照中缺席的玩家不会被移除，瞬断不能删除游戏状态，
//     退出是独立的显式动作。
//
// 在场事件至少送达一次，重复快照下本函数幂等：
// 第二次调用返回相同名单和空的newlyJoined。
func Reconcile(known []*Player, snapshot []*Player) (merged []*Player, newlyJoined []string) {
	seen := make(map[uint]bool, len(known))
	merged = make([]*Player, 0, len(known)+len(snapshot))

	for _, p := range known {
		seen[p.ID] = true
		merged = append(merged, p)
	}

	for _, p := range snapshot {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		merged = append(merged, &Player{
			ID:       p.ID,
			Username: p.Username,
			Alive:    true,
		})
		newlyJoined = append(newlyJoined, p.Username)
	}

	return merged, newlyJoined
}

// RemovePlayer 显式退出。与在场同步无关，只有玩家主动离开时调用。
func RemovePlayer(known []*Player, id uint) []*Player {
	result := make([]*Player, 0, len(known))
	for _, p := range known {
		if p.ID != id {
			result = append(result, p)
		}
	}
	return result
}
