package ledger_test

import (
	"reflect"
	"testing"

	"tally-service/internal/model"
	"tally-service/internal/service/ledger"
	appErr "tally-service/pkg/errors"
)

func newLedger(t *testing.T, names ...string) *ledger.Ledger {
	t.Helper()
	if len(names) == 0 {
		names = []string{"Alice", "Bob"}
	}
	return ledger.New(names, ledger.DefaultPointStep)
}

func checkInvariants(t *testing.T, state model.LedgerState) {
	t.Helper()
	for i, p := range state.Players {
		sum := 0
		for _, s := range p.RoundScores {
			sum += s
		}
		if p.TotalScore != sum {
			t.Fatalf("player %d: totalScore=%d but sum(roundScores)=%d", i, p.TotalScore, sum)
		}
		if !state.GameEnded && len(p.RoundScores) != state.CurrentRound+1 {
			t.Fatalf("player %d: %d round entries for round %d", i, len(p.RoundScores), state.CurrentRound)
		}
	}
}

func TestNewLedgerInitialState(t *testing.T) {
	l := newLedger(t)

	state := l.State()
	if len(state.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(state.Players))
	}
	if state.CurrentRound != 0 || state.GameEnded {
		t.Fatalf("unexpected initial state: %+v", state)
	}
	for i, p := range state.Players {
		if p.TotalScore != 0 || !reflect.DeepEqual(p.RoundScores, []int{0}) {
			t.Fatalf("player %d not zeroed: %+v", i, p)
		}
	}
	checkInvariants(t, state)
}

func TestAddPointUpdatesRoundAndTotal(t *testing.T) {
	l := newLedger(t)

	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.AddPoint(1); err != nil {
		t.Fatalf("add point failed: %v", err)
	}

	state := l.State()
	if state.Players[0].TotalScore != 10 || state.Players[1].TotalScore != 10 {
		t.Fatalf("unexpected totals: %+v", state.Players)
	}
	if state.Players[0].RoundScores[0] != 10 {
		t.Fatalf("round entry not updated: %+v", state.Players[0])
	}
	checkInvariants(t, state)
}

func TestAddPointIndexOutOfRange(t *testing.T) {
	l := newLedger(t)
	before := l.State()

	for _, idx := range []int{-1, 2, 100} {
		if err := l.AddPoint(idx); err != appErr.ErrPlayerIndexOutOfRange {
			t.Fatalf("index %d: expected ErrPlayerIndexOutOfRange, got %v", idx, err)
		}
	}
	if !reflect.DeepEqual(before, l.State()) {
		t.Fatal("failed call changed state")
	}
	if l.HistoryLen() != 0 {
		t.Fatalf("failed call appended history: %d", l.HistoryLen())
	}
}

func TestEndRoundOpensNewRoundForAllPlayers(t *testing.T) {
	l := newLedger(t)

	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.AddPoint(1); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.EndRound(); err != nil {
		t.Fatalf("end round failed: %v", err)
	}

	state := l.State()
	if state.CurrentRound != 1 {
		t.Fatalf("expected round 1, got %d", state.CurrentRound)
	}
	for i, p := range state.Players {
		if !reflect.DeepEqual(p.RoundScores, []int{10, 0}) {
			t.Fatalf("player %d roundScores = %v, want [10 0]", i, p.RoundScores)
		}
	}
	checkInvariants(t, state)
}

func TestResetRoundZeroesCurrentRound(t *testing.T) {
	l := newLedger(t, "A", "B", "C")

	for i := 0; i < 3; i++ {
		if err := l.AddPoint(0); err != nil {
			t.Fatalf("add point failed: %v", err)
		}
	}
	if err := l.ResetRound(); err != nil {
		t.Fatalf("reset round failed: %v", err)
	}

	state := l.State()
	if state.Players[0].TotalScore != 0 || state.Players[0].RoundScores[0] != 0 {
		t.Fatalf("round not reset: %+v", state.Players[0])
	}
	checkInvariants(t, state)
}

func TestResetRoundKeepsEarlierRounds(t *testing.T) {
	l := newLedger(t)

	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.EndRound(); err != nil {
		t.Fatalf("end round failed: %v", err)
	}
	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.ResetRound(); err != nil {
		t.Fatalf("reset round failed: %v", err)
	}

	state := l.State()
	if !reflect.DeepEqual(state.Players[0].RoundScores, []int{10, 0}) {
		t.Fatalf("roundScores = %v, want [10 0]", state.Players[0].RoundScores)
	}
	if state.Players[0].TotalScore != 10 {
		t.Fatalf("total = %d, want 10", state.Players[0].TotalScore)
	}
	checkInvariants(t, state)
}

func TestResetRoundIdempotent(t *testing.T) {
	l := newLedger(t)

	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.ResetRound(); err != nil {
		t.Fatalf("reset round failed: %v", err)
	}
	once := l.State()
	if err := l.ResetRound(); err != nil {
		t.Fatalf("second reset failed: %v", err)
	}
	if !reflect.DeepEqual(once, l.State()) {
		t.Fatalf("second reset changed state: %+v vs %+v", once, l.State())
	}
}

func TestUndoRestoresPriorState(t *testing.T) {
	l := newLedger(t)

	before := l.State()
	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if !reflect.DeepEqual(before, l.State()) {
		t.Fatalf("undo did not restore state: %+v vs %+v", before, l.State())
	}
}

func TestUndoEndRoundKeepsEarlierActions(t *testing.T) {
	l := newLedger(t)

	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	afterAdd := l.State()
	if err := l.EndRound(); err != nil {
		t.Fatalf("end round failed: %v", err)
	}
	if err := l.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}

	state := l.State()
	if !reflect.DeepEqual(afterAdd, state) {
		t.Fatalf("undo did not revert end round: %+v vs %+v", afterAdd, state)
	}
	if state.CurrentRound != 0 {
		t.Fatalf("round = %d, want 0", state.CurrentRound)
	}
	if !reflect.DeepEqual(state.Players[0].RoundScores, []int{10}) {
		t.Fatalf("roundScores = %v, want [10]", state.Players[0].RoundScores)
	}
}

func TestUndoWalksFullHistory(t *testing.T) {
	l := newLedger(t, "A", "B", "C")

	initial := l.State()
	mutations := []func() error{
		func() error { return l.AddPoint(0) },
		func() error { return l.AddPoint(1) },
		func() error { return l.EndRound() },
		func() error { return l.AddPoint(2) },
		func() error { return l.ResetRound() },
	}
	for i, mutate := range mutations {
		if err := mutate(); err != nil {
			t.Fatalf("mutation %d failed: %v", i, err)
		}
	}
	if l.HistoryLen() != len(mutations) {
		t.Fatalf("history length = %d, want %d", l.HistoryLen(), len(mutations))
	}

	for i := 0; i < len(mutations); i++ {
		if err := l.Undo(); err != nil {
			t.Fatalf("undo %d failed: %v", i, err)
		}
	}
	if !reflect.DeepEqual(initial, l.State()) {
		t.Fatalf("state not back to initial: %+v vs %+v", initial, l.State())
	}
	if err := l.Undo(); err != appErr.ErrNothingToUndo {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
}

func TestUndoSnapshotNotAliased(t *testing.T) {
	l := newLedger(t)

	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	afterFirst := l.State()
	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if !reflect.DeepEqual(afterFirst, l.State()) {
		t.Fatalf("snapshot corrupted by later mutation: %+v vs %+v", afterFirst, l.State())
	}
}

func TestMutationsAfterEndGame(t *testing.T) {
	l := newLedger(t)

	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.EndGame(); err != nil {
		t.Fatalf("end game failed: %v", err)
	}

	before := l.State()
	if err := l.AddPoint(0); err != appErr.ErrGameEnded {
		t.Fatalf("expected ErrGameEnded, got %v", err)
	}
	if err := l.EndRound(); err != appErr.ErrGameEnded {
		t.Fatalf("expected ErrGameEnded, got %v", err)
	}
	if err := l.ResetRound(); err != appErr.ErrGameEnded {
		t.Fatalf("expected ErrGameEnded, got %v", err)
	}
	if err := l.EndGame(); err != appErr.ErrGameEnded {
		t.Fatalf("expected ErrGameEnded, got %v", err)
	}
	if !reflect.DeepEqual(before, l.State()) {
		t.Fatal("rejected call changed state")
	}
}

func TestUndoAfterEndGameReopensGame(t *testing.T) {
	l := newLedger(t)

	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.EndGame(); err != nil {
		t.Fatalf("end game failed: %v", err)
	}

	// EndGame records no action, so undo pops the AddPoint and restores a
	// snapshot taken while the game was open.
	if err := l.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	state := l.State()
	if state.GameEnded {
		t.Fatal("expected game reopened after undo")
	}
	if state.Players[0].TotalScore != 0 {
		t.Fatalf("expected add point reverted, total = %d", state.Players[0].TotalScore)
	}
}

func TestWinnerPrefersRosterOrderOnTies(t *testing.T) {
	l := newLedger(t, "A", "B", "C")

	if err := l.AddPoint(1); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if err := l.AddPoint(2); err != nil {
		t.Fatalf("add point failed: %v", err)
	}

	if winner := l.Winner(); winner.Name != "B" {
		t.Fatalf("winner = %q, want B", winner.Name)
	}
}

func TestCustomPointStep(t *testing.T) {
	l := ledger.New([]string{"A", "B"}, 5)

	if err := l.AddPoint(0); err != nil {
		t.Fatalf("add point failed: %v", err)
	}
	if got := l.State().Players[0].TotalScore; got != 5 {
		t.Fatalf("total = %d, want 5", got)
	}
}

func TestStateReturnsCopy(t *testing.T) {
	l := newLedger(t)

	state := l.State()
	state.Players[0].RoundScores[0] = 999
	state.Players[0].TotalScore = 999

	if got := l.State().Players[0].TotalScore; got != 0 {
		t.Fatalf("external edit leaked into ledger: total = %d", got)
	}
}
