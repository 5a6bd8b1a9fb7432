package service

import (
	"context"

	"tally-service/internal/config"
	"tally-service/internal/service/session"
)

type Container struct {
	Session *session.Service
}

func NewContainer(cfg *config.Config) *Container {
	return &Container{
		Session: session.NewService(session.Config{
			PointStep:   cfg.Game.PointStep,
			IdleTimeout: cfg.Game.SessionTimeout,
		}),
	}
}

func (c *Container) Start(ctx context.Context) error {
	return c.Session.Start(ctx)
}
