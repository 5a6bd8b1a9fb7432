package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tally-service/internal/model"
	"tally-service/internal/service/ledger"
	appErr "tally-service/pkg/errors"
	"tally-service/pkg/logger"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseSetup  Phase = "setup"
	PhaseActive Phase = "active"
	PhaseEnded  Phase = "ended"
)

// SessionState is the full snapshot pushed to clients after every mutation.
type SessionState struct {
	SessionID  string             `json:"sessionId"`
	Code       string             `json:"code"`
	Phase      Phase              `json:"phase"`
	State      *model.LedgerState `json:"state,omitempty"`
	Ranking    []model.RankEntry  `json:"ranking,omitempty"`
	HistoryLen int                `json:"historyLen"`
}

// EndResult is returned when a game is ended: the winner plus the final
// standings.
type EndResult struct {
	Winner model.Player      `json:"winner"`
	Report []model.RankEntry `json:"report"`
}

type OutgoingMessage struct {
	Type string      `json:"type"`
	Seq  int64       `json:"seq"`
	Data interface{} `json:"data"`
}

// Runtime hosts one scoreboard session. It serializes all access to its
// ledger and pushes seq-numbered state snapshots to subscribers after every
// mutation.
type Runtime struct {
	id        string
	code      string
	pointStep int

	phase  Phase
	ledger *ledger.Ledger

	subscribers map[int64]chan OutgoingMessage
	nextSubID   int64
	seq         int64

	createdAt  time.Time
	lastActive time.Time

	mu sync.Mutex
}

func newRuntime(id, code string, names []string, pointStep int) *Runtime {
	now := time.Now()
	return &Runtime{
		id:          id,
		code:        code,
		pointStep:   pointStep,
		phase:       PhaseActive,
		ledger:      ledger.New(names, pointStep),
		subscribers: make(map[int64]chan OutgoingMessage),
		createdAt:   now,
		lastActive:  now,
	}
}

func (rt *Runtime) ID() string   { return rt.id }
func (rt *Runtime) Code() string { return rt.code }

// Snapshot exports the current session state.
func (rt *Runtime) Snapshot() SessionState {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.exportStateLocked()
}

// AddPoint adds the configured point step to the given player's current
// round and total.
func (rt *Runtime) AddPoint(playerIndex int) (SessionState, error) {
	return rt.mutate(func() error { return rt.ledger.AddPoint(playerIndex) })
}

// EndRound opens the next round for every player.
func (rt *Runtime) EndRound() (SessionState, error) {
	return rt.mutate(func() error { return rt.ledger.EndRound() })
}

// ResetRound zeroes the current round for every player.
func (rt *Runtime) ResetRound() (SessionState, error) {
	return rt.mutate(func() error { return rt.ledger.ResetRound() })
}

// Undo reverts the newest ledger action. Undoing after the game has ended
// restores a snapshot taken while it was open, which also reactivates the
// session.
func (rt *Runtime) Undo() (SessionState, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.lastActive = time.Now()
	if rt.ledger == nil {
		return rt.exportStateLocked(), appErr.ErrSessionNotStarted
	}
	if err := rt.ledger.Undo(); err != nil {
		return rt.exportStateLocked(), err
	}
	if !rt.ledger.State().GameEnded {
		rt.phase = PhaseActive
	}
	state := rt.exportStateLocked()
	rt.broadcastLocked(state)
	return state, nil
}

// EndSession marks the game over and reports winner and final standings.
func (rt *Runtime) EndSession() (EndResult, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.lastActive = time.Now()
	if rt.ledger == nil {
		return EndResult{}, appErr.ErrSessionNotStarted
	}
	if err := rt.ledger.EndGame(); err != nil {
		return EndResult{}, err
	}
	rt.phase = PhaseEnded

	result := EndResult{
		Winner: rt.ledger.Winner(),
		Report: rt.ledger.Rank(),
	}
	rt.broadcastLocked(rt.exportStateLocked())
	return result, nil
}

// Restart discards the ledger and its history. With a new roster the session
// starts over immediately; without one it returns to setup and waits for the
// next roster. Restarting a session already in setup is a no-op.
func (rt *Runtime) Restart(names []string) (SessionState, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.lastActive = time.Now()
	if len(names) > 0 {
		valid, err := NormalizeNames(names)
		if err != nil {
			return rt.exportStateLocked(), err
		}
		rt.ledger = ledger.New(valid, rt.pointStep)
		rt.phase = PhaseActive
	} else {
		rt.ledger = nil
		rt.phase = PhaseSetup
	}
	state := rt.exportStateLocked()
	rt.broadcastLocked(state)
	return state, nil
}

// Ranking returns the current standings.
func (rt *Runtime) Ranking() ([]model.RankEntry, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.ledger == nil {
		return nil, appErr.ErrSessionNotStarted
	}
	return rt.ledger.Rank(), nil
}

// LeaderPosition returns the 1-based rank position of the given player.
func (rt *Runtime) LeaderPosition(playerIndex int) (int, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.ledger == nil {
		return 0, appErr.ErrSessionNotStarted
	}
	return rt.ledger.LeaderPosition(playerIndex)
}

// Subscribe registers a state feed. The current snapshot is pushed
// immediately so new clients render without waiting for a mutation.
func (rt *Runtime) Subscribe() (int64, <-chan OutgoingMessage) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.nextSubID++
	subID := rt.nextSubID
	ch := make(chan OutgoingMessage, 8)
	rt.subscribers[subID] = ch
	rt.pushLocked(subID, OutgoingMessage{
		Type: "state",
		Seq:  rt.nextSeqLocked(),
		Data: rt.exportStateLocked(),
	})
	return subID, ch
}

func (rt *Runtime) Unsubscribe(subID int64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if ch, ok := rt.subscribers[subID]; ok {
		delete(rt.subscribers, subID)
		close(ch)
	}
}

// HandleAction dispatches a client message from the websocket feed.
func (rt *Runtime) HandleAction(subID int64, action string, data json.RawMessage) error {
	switch action {
	case "add_point":
		var payload struct {
			PlayerIndex *int `json:"playerIndex"`
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &payload)
		}
		if payload.PlayerIndex == nil {
			return fmt.Errorf("playerIndex required")
		}
		_, err := rt.AddPoint(*payload.PlayerIndex)
		return err
	case "end_round":
		_, err := rt.EndRound()
		return err
	case "reset_round":
		_, err := rt.ResetRound()
		return err
	case "undo":
		_, err := rt.Undo()
		return err
	case "end_game":
		result, err := rt.EndSession()
		if err != nil {
			return err
		}
		rt.mu.Lock()
		rt.pushLocked(subID, OutgoingMessage{Type: "end_result", Seq: rt.nextSeqLocked(), Data: result})
		rt.mu.Unlock()
		return nil
	case "restart":
		var payload struct {
			Names []string `json:"names"`
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &payload)
		}
		_, err := rt.Restart(payload.Names)
		return err
	case "rejoin":
		rt.mu.Lock()
		rt.pushLocked(subID, OutgoingMessage{Type: "state", Seq: rt.nextSeqLocked(), Data: rt.exportStateLocked()})
		rt.mu.Unlock()
		return nil
	case "ping":
		rt.mu.Lock()
		rt.pushLocked(subID, OutgoingMessage{Type: "pong", Seq: rt.nextSeqLocked(), Data: map[string]string{"message": "pong"}})
		rt.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("unsupported action")
	}
}

func (rt *Runtime) mutate(op func() error) (SessionState, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.lastActive = time.Now()
	if rt.ledger == nil {
		return rt.exportStateLocked(), appErr.ErrSessionNotStarted
	}
	if err := op(); err != nil {
		return rt.exportStateLocked(), err
	}
	state := rt.exportStateLocked()
	rt.broadcastLocked(state)
	return state, nil
}

func (rt *Runtime) exportStateLocked() SessionState {
	state := SessionState{
		SessionID: rt.id,
		Code:      rt.code,
		Phase:     rt.phase,
	}
	if rt.ledger != nil {
		ledgerState := rt.ledger.State()
		state.State = &ledgerState
		state.Ranking = rt.ledger.Rank()
		state.HistoryLen = rt.ledger.HistoryLen()
	}
	return state
}

func (rt *Runtime) broadcastLocked(state SessionState) {
	msg := OutgoingMessage{
		Type: "state",
		Seq:  rt.nextSeqLocked(),
		Data: state,
	}
	for subID, ch := range rt.subscribers {
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("session subscriber channel full",
				zap.String("sessionID", rt.id),
				zap.Int64("subID", subID),
			)
		}
	}
}

func (rt *Runtime) pushLocked(subID int64, msg OutgoingMessage) {
	if ch, ok := rt.subscribers[subID]; ok {
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("session subscriber channel full",
				zap.String("sessionID", rt.id),
				zap.Int64("subID", subID),
			)
		}
	}
}

func (rt *Runtime) nextSeqLocked() int64 {
	rt.seq++
	return rt.seq
}

func (rt *Runtime) idleSince() time.Time {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.lastActive
}

func (rt *Runtime) closeAll() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	for subID, ch := range rt.subscribers {
		delete(rt.subscribers, subID)
		close(ch)
	}
}
