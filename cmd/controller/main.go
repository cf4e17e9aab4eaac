// Command controller runs the Controller Node: job submission intake,
// worker reaping, and cluster metrics.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grishkovelli/asc/internal/config"
	"github.com/grishkovelli/asc/internal/controller"
	"github.com/grishkovelli/asc/internal/dashboard"
	"github.com/grishkovelli/asc/internal/logging"
	"github.com/grishkovelli/asc/internal/store"
)

func main() {
	bootLog, err := logging.New("info", true)
	if err != nil {
		os.Exit(1)
	}
	defer bootLog.Sync()

	cfg, err := config.Load(bootLog)
	if err != nil {
		bootLog.Fatal("failed to load configuration", "error", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)
	if err != nil {
		bootLog.Fatal("failed to initialize logger", "error", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewRedisStore(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("failed to connect to coordination store", "error", err)
	}
	defer st.Close()

	keys := store.Keys{Prefix: cfg.Redis.KeyPrefix}

	var dash *dashboard.Hub
	if cfg.Dashboard.Enabled {
		dash = dashboard.NewHub(log)
		go func() {
			if err := dash.Run(ctx, cfg.Dashboard.Addr); err != nil {
				log.Error("dashboard server stopped with error", "error", err)
			}
		}()
	}

	var broadcaster controller.Broadcaster
	if dash != nil {
		broadcaster = dash
	}

	ctrl := controller.New(st, keys, cfg.Controller, log, broadcaster)

	go func() {
		<-ctx.Done()
		log.Info("shutting down controller")
		ctrl.Shutdown()
	}()

	log.Info("controller starting", "redis", cfg.Redis.Addr(), "keyPrefix", cfg.Redis.KeyPrefix)
	if err := ctrl.Run(ctx); err != nil {
		log.Fatal("controller exited with error", "error", err)
	}
}
