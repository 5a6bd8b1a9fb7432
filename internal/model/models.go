package model

// Player is one roster entry. RoundScores holds exactly one entry per round,
// index-aligned with LedgerState.CurrentRound; TotalScore is always the sum
// of RoundScores.
type Player struct {
	Name        string `json:"name"`
	TotalScore  int    `json:"totalScore"`
	RoundScores []int  `json:"roundScores"`
}

// Clone returns a deep copy of the player.
func (p Player) Clone() Player {
	return Player{
		Name:        p.Name,
		TotalScore:  p.TotalScore,
		RoundScores: append([]int(nil), p.RoundScores...),
	}
}

// LedgerState is the authoritative scoreboard state. Operations never edit a
// state in place: each mutation builds a new value from a deep copy, so the
// undo history can hold prior values without aliasing.
type LedgerState struct {
	Players      []Player `json:"players"`
	CurrentRound int      `json:"currentRound"`
	GameEnded    bool     `json:"gameEnded"`
}

// Clone returns a deep copy of the state.
func (s LedgerState) Clone() LedgerState {
	players := make([]Player, len(s.Players))
	for i, p := range s.Players {
		players[i] = p.Clone()
	}
	return LedgerState{
		Players:      players,
		CurrentRound: s.CurrentRound,
		GameEnded:    s.GameEnded,
	}
}

type ActionKind string

const (
	ActionAddPoint   ActionKind = "add_point"
	ActionEndRound   ActionKind = "end_round"
	ActionResetRound ActionKind = "reset_round"
)

// Action is one entry of the undo history: the kind of mutation plus the full
// pre-mutation snapshot it restores. The history is append-only and consumed
// strictly LIFO.
type Action struct {
	Kind        ActionKind  `json:"kind"`
	PlayerIndex int         `json:"playerIndex,omitempty"`
	RoundIndex  int         `json:"roundIndex,omitempty"`
	Before      LedgerState `json:"-"`
}

// RankEntry is one row of a ranking. Position is the 1-based index in the
// sorted order; equal scores do not compress subsequent positions.
type RankEntry struct {
	Position    int    `json:"position"`
	PlayerIndex int    `json:"playerIndex"`
	Name        string `json:"name"`
	TotalScore  int    `json:"totalScore"`
}
