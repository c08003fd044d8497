// Command seed creates or refreshes the bootstrap admin and agent accounts.
package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type seedUser struct {
	name     string
	email    string
	password string
	role     domain.Role
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	authService := service.NewAuthService(cfg.Auth, repository.NewUserRepository(pg.PoolHandle()))

	users := []seedUser{
		{
			name:     env("SEED_ADMIN_NAME", "Admin"),
			email:    env("SEED_ADMIN_EMAIL", "admin@helpdesk.local"),
			password: env("SEED_ADMIN_PASSWORD", "admin123"),
			role:     domain.RoleAdmin,
		},
		{
			name:     env("SEED_AGENT_NAME", "Agent"),
			email:    env("SEED_AGENT_EMAIL", "agent@helpdesk.local"),
			password: env("SEED_AGENT_PASSWORD", "agent123"),
			role:     domain.RoleAgent,
		},
	}
	for _, u := range users {
		created, err := authService.EnsureUser(ctx, u.name, u.email, u.password, u.role)
		if err != nil {
			logger.Fatal("seed user", zap.String("email", u.email), zap.Error(err))
		}
		logger.Info("seeded user", zap.String("id", created.ID), zap.String("email", created.Email), zap.String("role", string(created.Role)))
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
