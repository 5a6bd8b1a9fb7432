package ledger

import (
	"sort"

	"tally-service/internal/model"
	appErr "tally-service/pkg/errors"
)

// Rank sorts players by total score, highest first, ties broken by roster
// order. Positions are 1-based list indexes: two players with equal scores
// still occupy consecutive positions, they are not collapsed into one rank.
func Rank(players []model.Player) []model.RankEntry {
	order := make([]int, len(players))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return players[order[a]].TotalScore > players[order[b]].TotalScore
	})

	entries := make([]model.RankEntry, len(order))
	for pos, idx := range order {
		entries[pos] = model.RankEntry{
			Position:    pos + 1,
			PlayerIndex: idx,
			Name:        players[idx].Name,
			TotalScore:  players[idx].TotalScore,
		}
	}
	return entries
}

// LeaderPosition returns the 1-based position of playerIndex in the full
// ranking. With a tie for first place the stable sort still yields exactly
// one player at position 1, the first such player in roster order.
func LeaderPosition(players []model.Player, playerIndex int) (int, error) {
	if playerIndex < 0 || playerIndex >= len(players) {
		return 0, appErr.ErrPlayerIndexOutOfRange
	}
	for _, entry := range Rank(players) {
		if entry.PlayerIndex == playerIndex {
			return entry.Position, nil
		}
	}
	return 0, appErr.ErrPlayerIndexOutOfRange
}
