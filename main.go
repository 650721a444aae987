package main

import (
	"context"
	"time"

	"github.com/citis/sapro/config"
	"github.com/citis/sapro/routes"
	"github.com/citis/sapro/stores"
	"github.com/citis/sapro/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	passwords, err := stores.NewPasswordStore(cfg.PasswordsFile())
	if err != nil {
		utils.Sugar.Fatalf("open password store: %v", err)
	}
	files, err := stores.NewFileStore(cfg.UploadsDir)
	if err != nil {
		utils.Sugar.Fatalf("open file store: %v", err)
	}
	credential, err := utils.NewCredential(cfg.AuthUsername, cfg.AuthPassword)
	if err != nil {
		utils.Sugar.Fatalf("hash credential: %v", err)
	}

	guard := utils.NewLoginGuard(utils.NewRedisClient(cfg), cfg.LoginFailedMaxPerIPPerHour, time.Duration(cfg.LoginTempBanMinutes)*time.Minute)

	// Leftovers from writes interrupted by a crash, and stale login counters
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	utils.StartJanitor(ctx, 10*time.Minute, func() {
		utils.RemoveStaleFiles(cfg.DataDir, stores.TempFilePattern, time.Hour)
		guard.Prune()
	})

	r := routes.SetupRouter(routes.Deps{
		Config:     cfg,
		Sessions:   utils.NewSessionManager(cfg.JWTSecret, cfg.AuthUsername),
		Credential: credential,
		LoginGuard: guard,
		Passwords:  passwords,
		Files:      files,
	})

	utils.Sugar.Infow("SAPRO dashboard server starting",
		"local", "http://localhost:"+cfg.AppPort,
		"lan", "http://"+utils.LocalIPv4()+":"+cfg.AppPort,
		"passwords", cfg.PasswordsFile(),
		"uploads", cfg.UploadsDir,
		"user", cfg.AuthUsername,
	)
	if err := utils.GraceServer(cfg.Addr(), r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
