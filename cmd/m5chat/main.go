package main

import (
	"context"

	"github.com/joho/godotenv"

	"m5chat/internal/app"
	"m5chat/pkg/config"
	"m5chat/pkg/logger"
	"m5chat/pkg/shutdown"
)

// build metadata, set via ldflags during release
var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgPath, setFlags := config.ParseCommandFlags()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Init()
		shutdown.Abort("failed to load config", err, "", 0)
	}
	// explicit flags win over file and env values
	if setFlags["addr"] {
		cfg.Server.Address = addrVal
		cfg.Server.Port = 0
	}
	if setFlags["db"] {
		cfg.Storage.DBPath = dbVal
	}

	logger.InitWithLevel(cfg.Logging.Level)

	verStr := version
	if commit != "none" {
		verStr += " (" + commit + ")"
	}

	a, err := app.New(cfg, verStr)
	if err != nil {
		shutdown.Abort("failed to initialize server", err, cfg.DBPath(), 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	logger.Info("server_starting", "addr", cfg.Addr(), "ttl", cfg.TTL().String(), "version", verStr)
	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited with error", err, cfg.DBPath(), 0)
	}
}
