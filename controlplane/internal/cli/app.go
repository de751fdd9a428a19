// Package cli holds the controlplane subcommands.
package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"captive-portal/controlplane/internal/config"
	"captive-portal/controlplane/internal/infra"
	"captive-portal/controlplane/internal/logging"
	"captive-portal/controlplane/internal/repository"
	"captive-portal/controlplane/internal/service"
)

// app is the wiring every subcommand shares: config, database, optional
// redis, and the service built over them.
type app struct {
	env       config.Env
	log       *logrus.Entry
	db        *gorm.DB
	repo      *repository.GormRepository
	rdb       *redis.Client
	overrides *service.RedisPolicyOverrides
	svc       *service.Service
}

func openApp(ctx context.Context) (*app, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	log := logging.New("controlplane")

	db, err := infra.OpenDB(env.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := infra.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a := &app{env: env, log: log, db: db, repo: repository.NewGormRepository(db)}

	var overrides service.PolicyOverrides
	if env.RedisURL != "" {
		opts, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("PORTAL_REDIS_URL: %w", err)
		}
		a.rdb = redis.NewClient(opts)
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; policy overrides disabled until it recovers")
		}
		a.overrides = service.NewRedisPolicyOverrides(a.rdb)
		overrides = a.overrides
	}

	selector := service.NewRulePolicySelector(a.repo, overrides, env.DefaultPolicy, log)
	a.svc = service.New(a.repo, selector, service.WithLogger(log))

	if env.PolicyFile != "" {
		if err := a.importCatalog(ctx, env.PolicyFile); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) importCatalog(ctx context.Context, path string) error {
	policies, err := config.LoadPolicyCatalog(path)
	if err != nil {
		return err
	}
	_, err = a.svc.ImportPolicies(ctx, policies)
	return err
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
