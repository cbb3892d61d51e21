package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bandtest/internal/api"
	"bandtest/internal/backtest"
	"bandtest/internal/config"
	"bandtest/internal/trace"
	"bandtest/internal/util"
)

func main() {
	_ = godotenv.Load()

	defaultCfg := "config/bandtest.yaml"
	if p := os.Getenv("BANDTEST_CONFIG"); p != "" {
		defaultCfg = p
	}
	cfgPath := flag.String("config", defaultCfg, "path to YAML config (ignored if missing)")
	flag.Parse()

	path := *cfgPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if err := trace.Init(cfg.Logging.Tracing, "bandtest-server"); err != nil {
		log.Fatalf("initializing tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env, err := backtest.Setup(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("setting up backtester: %v", err)
	}
	defer env.Close()

	h := api.NewHandlers(env.Backtester, env.Profiles, cfg.Backtest, logger)
	srv := api.NewServer(cfg.Server, h, logger)

	logger.Info("bandtest-server starting",
		"config", path,
		"http_port", cfg.Server.Port,
		"grpc_port", cfg.Server.GRPCPort,
		"sources", env.Backtester.Sources(),
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
