package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wisbric/quotagate/internal/app"
	"github.com/wisbric/quotagate/internal/config"
)

// Exit codes (spec.md §6): 0 clean shutdown, 1 invalid configuration,
// 2 KV store unreachable at startup after bounded retry.
const (
	exitOK     = 0
	exitConfig = 1
	exitKV     = 2
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(exitConfig)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(exitConfig)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, cfg); err != nil {
		slog.Error("fatal", "error", err)
		if errors.Is(err, app.ErrKVUnreachable) {
			os.Exit(exitKV)
		}
		os.Exit(exitConfig)
	}

	os.Exit(exitOK)
}
