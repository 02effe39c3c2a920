package service

import (
	"context"

	"party-service/internal/config"
	"party-service/internal/service/bus"
	"party-service/internal/service/mafia"
	"party-service/internal/service/referee"
	"party-service/internal/service/session"
	"party-service/internal/service/statesync"
	"party-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const busBuffer = 64

type Container struct {
	Sync    *statesync.Synchronizer
	Bus     bus.Bus
	Referee *referee.Referee
	Engine  *mafia.Engine
	Session *session.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Container {
	log := logger.Log

	syncer := statesync.NewSynchronizer(rdb, statesync.Config{
		OwnerID:           cfg.Sync.OwnerID,
		ConflictWindow:    cfg.Sync.ConflictWindow,
		CacheTTL:          cfg.Sync.CacheTTL,
		ReconcileInterval: cfg.Sync.ReconcileInterval,
		StoreTimeout:      cfg.Sync.StoreTimeout,
		StateTTL:          cfg.Sync.StateTTL,
		MaxWriteAttempts:  cfg.Sync.MaxWriteAttempts,
	}, log)

	var b bus.Bus
	switch cfg.Bus.Driver {
	case "local":
		b = bus.NewLocalBus(busBuffer, log)
	default:
		b = bus.NewRedisBus(rdb, busBuffer, log)
	}

	ref := referee.NewReferee(db, syncer, b, referee.Config{
		CooldownDuration: cfg.Referee.CooldownDuration,
		TimeoutDuration:  cfg.Referee.TimeoutDuration,
		HistoryWindow:    cfg.Referee.HistoryWindow,
	}, log)

	engine := mafia.NewEngine(syncer, b, mafia.Config{
		MinPlayers:             cfg.Game.MinPlayers,
		MaxPlayers:             cfg.Game.MaxPlayers,
		RoleReveal:             cfg.Game.RoleRevealDuration,
		Night:                  cfg.Game.NightDuration,
		Day:                    cfg.Game.DayDuration,
		Voting:                 cfg.Game.VotingDuration,
		Trial:                  cfg.Game.TrialDuration,
		SkillVarianceThreshold: cfg.Game.SkillVarianceThreshold,
		TimerStoreTimeout:      cfg.Sync.StoreTimeout,
		RetryMaxElapsed:        cfg.Engine.RetryMaxElapsed,
		RetryMaxTries:          cfg.Engine.RetryMaxTries,
		ActionsPerSec:          cfg.Engine.ActionsPerSec,
		ActionBurst:            cfg.Engine.ActionBurst,
	}, log)
	engine.SetReviewer(ref)

	return &Container{
		Sync:    syncer,
		Bus:     b,
		Referee: ref,
		Engine:  engine,
		Session: session.NewService(db, engine, syncer, cfg.Game.Retention, log),
	}
}

// Start launches the reconciliation loop. It stops with ctx.
func (c *Container) Start(ctx context.Context) error {
	go c.Sync.Run(ctx)
	logger.Log.Info("services started", zap.String("ownerID", c.Sync.OwnerID()))
	return nil
}

func (c *Container) Close() {
	c.Engine.Close()
}
