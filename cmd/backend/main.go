package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"ServiceMeshDemo/internal/config"
	"ServiceMeshDemo/internal/demobackend"
	"ServiceMeshDemo/internal/logging"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	failureRate := pflag.Float64("failure-rate", demobackend.DefaultFailureRate, "fraction of /api/message calls that fail with 500")
	logLevel := pflag.String("log-level", "info", "debug | info | warn | error")
	dev := pflag.Bool("dev", false, "human readable logs")
	pflag.Parse()

	if *failureRate < 0 || *failureRate > 1 {
		fmt.Fprintln(os.Stderr, "--failure-rate must be between 0 and 1")
		os.Exit(2)
	}

	logger, err := logging.New(config.LoggingConfig{Level: *logLevel, Development: *dev}, demobackend.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	svc := demobackend.New(demobackend.Options{FailureRate: *failureRate}, logger)

	server := &http.Server{
		Addr:        "0.0.0.0:" + port,
		Handler:     svc.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("backend listening",
			"addr", server.Addr,
			"version", demobackend.Version,
			"instance", svc.Instance(),
			"failure_rate", *failureRate,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorw("backend error", "error", err)
		os.Exit(1)
	}
}
