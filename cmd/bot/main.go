package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"hwbot/internal/app"
	"hwbot/internal/config"
	logx "hwbot/pkg/logx"
)

func main() {
	boot := logx.NewConsole("info")

	if err := config.LoadDotenv(); err != nil {
		boot.Warn("dotenv load failed", logx.Err(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(config.NewConfigManager(os.Getenv(config.EnvConfigPath)))
	if err != nil {
		var cme *config.ConfigMissingError
		if errors.As(err, &cme) {
			boot.Error("missing required environment variables", logx.Any("vars", cme.Vars))
		} else {
			boot.Error("fatal", logx.Err(err))
		}
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		boot.Error("fatal run", logx.Err(err))
		os.Exit(1)
	}
}
