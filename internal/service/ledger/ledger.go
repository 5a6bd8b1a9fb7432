package ledger

import (
	"tally-service/internal/model"
	appErr "tally-service/pkg/errors"
)

const DefaultPointStep = 10

// Ledger owns the authoritative scoreboard state and its undo history.
//
// Every mutation builds a new LedgerState value from a deep copy of the old
// one and appends an action record holding the pre-mutation value, so Undo
// can restore it wholesale. The ledger itself is not safe for concurrent
// use; callers serialize access (the session runtime holds the lock).
type Ledger struct {
	state     model.LedgerState
	history   []model.Action
	pointStep int
}

// New builds a ledger for the given roster: one zero round entry per player,
// round 0, game open. Name validation happens in the session service.
func New(names []string, pointStep int) *Ledger {
	if pointStep <= 0 {
		pointStep = DefaultPointStep
	}
	players := make([]model.Player, len(names))
	for i, name := range names {
		players[i] = model.Player{
			Name:        name,
			TotalScore:  0,
			RoundScores: []int{0},
		}
	}
	return &Ledger{
		state: model.LedgerState{
			Players:      players,
			CurrentRound: 0,
			GameEnded:    false,
		},
		pointStep: pointStep,
	}
}

// State returns a deep copy of the current state.
func (l *Ledger) State() model.LedgerState {
	return l.state.Clone()
}

// HistoryLen reports how many actions can still be undone.
func (l *Ledger) HistoryLen() int {
	return len(l.history)
}

// AddPoint adds the point step to the given player's current round entry and
// total.
func (l *Ledger) AddPoint(playerIndex int) error {
	if l.state.GameEnded {
		return appErr.ErrGameEnded
	}
	if playerIndex < 0 || playerIndex >= len(l.state.Players) {
		return appErr.ErrPlayerIndexOutOfRange
	}

	next := l.state.Clone()
	p := &next.Players[playerIndex]
	p.RoundScores[next.CurrentRound] += l.pointStep
	p.TotalScore += l.pointStep

	l.commit(model.Action{
		Kind:        model.ActionAddPoint,
		PlayerIndex: playerIndex,
		RoundIndex:  l.state.CurrentRound,
	}, next)
	return nil
}

// EndRound opens the next round: every player gets a fresh zero entry and the
// round index advances. All players move together; the new state replaces the
// old one in a single assignment.
func (l *Ledger) EndRound() error {
	if l.state.GameEnded {
		return appErr.ErrGameEnded
	}

	next := l.state.Clone()
	for i := range next.Players {
		next.Players[i].RoundScores = append(next.Players[i].RoundScores, 0)
	}
	next.CurrentRound++

	l.commit(model.Action{
		Kind:       model.ActionEndRound,
		RoundIndex: l.state.CurrentRound,
	}, next)
	return nil
}

// ResetRound zeroes the current round for every player and removes its
// contribution from their totals. Running it twice in a row is the same as
// running it once.
func (l *Ledger) ResetRound() error {
	if l.state.GameEnded {
		return appErr.ErrGameEnded
	}

	next := l.state.Clone()
	for i := range next.Players {
		p := &next.Players[i]
		p.TotalScore -= p.RoundScores[next.CurrentRound]
		p.RoundScores[next.CurrentRound] = 0
	}

	l.commit(model.Action{
		Kind:       model.ActionResetRound,
		RoundIndex: l.state.CurrentRound,
	}, next)
	return nil
}

// Undo pops the newest action record and restores its pre-mutation snapshot.
// Repeated calls walk the history one step at a time, strictly LIFO; there is
// no redo. Ending the game does not block undo: the restored snapshot was
// taken while the game was active, so undoing after EndGame also reopens it.
func (l *Ledger) Undo() error {
	if len(l.history) == 0 {
		return appErr.ErrNothingToUndo
	}
	last := l.history[len(l.history)-1]
	l.history = l.history[:len(l.history)-1]
	l.state = last.Before
	return nil
}

// EndGame sets the terminal flag. It appends no action record, so it cannot
// be undone as a step of its own.
func (l *Ledger) EndGame() error {
	if l.state.GameEnded {
		return appErr.ErrGameEnded
	}
	next := l.state.Clone()
	next.GameEnded = true
	l.state = next
	return nil
}

// Winner returns the player with the highest total, first in roster order on
// ties.
func (l *Ledger) Winner() model.Player {
	winner := 0
	for i, p := range l.state.Players {
		if p.TotalScore > l.state.Players[winner].TotalScore {
			winner = i
		}
	}
	return l.state.Players[winner].Clone()
}

// Rank returns the current standings.
func (l *Ledger) Rank() []model.RankEntry {
	return Rank(l.state.Players)
}

// LeaderPosition returns the 1-based position of the given player.
func (l *Ledger) LeaderPosition(playerIndex int) (int, error) {
	return LeaderPosition(l.state.Players, playerIndex)
}

func (l *Ledger) commit(action model.Action, next model.LedgerState) {
	action.Before = l.state
	l.history = append(l.history, action)
	l.state = next
}
