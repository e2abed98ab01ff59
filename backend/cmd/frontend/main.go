package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"ServiceMeshDemo/internal/calllog"
	"ServiceMeshDemo/internal/config"
	"ServiceMeshDemo/internal/frontend"
	"ServiceMeshDemo/internal/logging"
)

/*
Frontend of the service mesh demo.

  GET /          demo page
  GET /health    liveness probe
  GET /api/data  calls {BACKEND_URL}/api/message and wraps the reply

BACKEND_URL (default http://backend:4000) overrides the config file.
*/

func main() {
	configPath := pflag.String("config", "frontend.yaml", "path to the frontend config file (optional)")
	addr := pflag.String("addr", "", "listen address (overrides config)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(cfg.Logging, frontend.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	/*
		Call log (append only, fail open, optional)
	*/

	var calls *calllog.Logger
	if cfg.CallLog.Path != "" {
		calls, err = calllog.NewLogger(cfg.CallLog.Path)
		if err != nil {
			logger.Fatalw("failed to open call log", "path", cfg.CallLog.Path, "error", err)
		}
		defer calls.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := frontend.New(cfg, logger, calls)
	if err := srv.Run(ctx); err != nil {
		logger.Errorw("server error", "error", err)
		os.Exit(1)
	}
}
