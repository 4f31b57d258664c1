package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/auth"
	"github.com/nimeshabuddhika/churnshield/pkg/database"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/configs"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/services"
	"go.uber.org/zap"
)

// main creates or replaces an admin account in the configured database.
// The password can come from -password or APP_SEED_ADMIN_PASSWORD.
func main() {
	username := flag.String("username", services.DemoUsername, "Username to create or replace")
	password := flag.String("password", "", "Password (defaults to APP_SEED_ADMIN_PASSWORD, then the demo password)")
	fullName := flag.String("fullName", services.DemoFullName, "Display name")
	flag.Parse()

	pkg.InitLogger()
	logger := pkg.Logger
	defer func() { _ = logger.Sync() }()

	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.DemoMode() {
		logger.Fatal("APP_PRIMARY_DB_ADDR is required for seeding")
	}

	pw := *password
	if utils.IsEmpty(pw) {
		pw = os.Getenv("APP_SEED_ADMIN_PASSWORD")
	}
	if utils.IsEmpty(pw) {
		logger.Warn("no password given, using the demo password")
		pw = services.DemoPassword
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, closer, err := database.New(ctx, logger, database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	})
	if err != nil {
		logger.Fatal("failed to init DB", zap.Error(err))
	}
	defer closer()

	if err := database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	hash, err := auth.HashPassword(pw)
	if err != nil {
		logger.Fatal("failed to hash password", zap.Error(err))
	}
	user, err := repositories.NewUserRepository(db).Create(ctx, models.User{
		Username: *username,
		Password: hash,
		FullName: *fullName,
		Theme:    pkg.ThemeDark,
	})
	if err != nil {
		logger.Fatal("failed to create user", zap.Error(pkg.HandleSQLError("seed", logger, err)))
	}
	logger.Info("admin_user_seeded", zap.Int64("id", user.ID), zap.String(pkg.Username, user.Username))
}
