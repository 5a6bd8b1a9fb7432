package session

import (
	"context"
	"strings"
	"sync"
	"time"

	appErr "tally-service/pkg/errors"
	"tally-service/pkg/logger"
	"tally-service/pkg/utils/random"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const shareCodeLength = 6

// Config carries the tunables the session service needs; values come from
// the game section of the config file.
type Config struct {
	PointStep   int
	IdleTimeout time.Duration
}

// Service is the session controller: it validates rosters, owns the registry
// of live scoreboards, and reaps the ones nobody touches anymore.
type Service struct {
	cfg      Config
	sessions sync.Map // sessionID -> *Runtime
}

func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// Start launches the idle-session reaper. It stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.IdleTimeout <= 0 {
		return nil
	}
	go s.runReaper(ctx)
	return nil
}

// Create validates the roster and opens a new scoreboard session.
func (s *Service) Create(names []string) (*Runtime, error) {
	valid, err := NormalizeNames(names)
	if err != nil {
		return nil, err
	}

	rt := newRuntime(uuid.NewString(), random.Code(shareCodeLength), valid, s.cfg.PointStep)
	s.sessions.Store(rt.ID(), rt)
	logger.Log.Info("session created",
		zap.String("sessionID", rt.ID()),
		zap.String("code", rt.Code()),
		zap.Int("players", len(valid)),
	)
	return rt, nil
}

// Get looks up a live session by ID.
func (s *Service) Get(sessionID string) (*Runtime, error) {
	if v, ok := s.sessions.Load(sessionID); ok {
		return v.(*Runtime), nil
	}
	return nil, appErr.ErrSessionNotFound
}

// Remove drops a session and disconnects its subscribers.
func (s *Service) Remove(sessionID string) {
	if v, ok := s.sessions.LoadAndDelete(sessionID); ok {
		v.(*Runtime).closeAll()
		logger.Log.Info("session removed", zap.String("sessionID", sessionID))
	}
}

// NormalizeNames trims the given names, drops empty ones, and requires at
// least two survivors.
func NormalizeNames(names []string) ([]string, error) {
	valid := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		valid = append(valid, trimmed)
	}
	if len(valid) < 2 {
		return nil, appErr.ErrTooFewPlayers
	}
	return valid, nil
}

func (s *Service) runReaper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("session reaper stopped")
			return
		case <-ticker.C:
			s.reapIdle(time.Now().Add(-s.cfg.IdleTimeout))
		}
	}
}

func (s *Service) reapIdle(cutoff time.Time) {
	s.sessions.Range(func(key, value any) bool {
		rt := value.(*Runtime)
		if rt.idleSince().Before(cutoff) {
			logger.Log.Info("reaping idle session", zap.String("sessionID", rt.ID()))
			s.Remove(rt.ID())
		}
		return true
	})
}
