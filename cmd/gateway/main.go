// Command gateway runs the hchat gateway: the four handshake endpoints, the
// in-process distribution hub and the health and metrics servers.
//
// # Configuration
//
// Settings come from an optional YAML file (--config), then environment
// variables, then flags. The system key pair and hub secret are usually
// provided through the environment:
//
//	SYSTEM_PRIVATE_KEY=... PUBNUB_SUBSCRIBE_KEY=sub-c-local PUBNUB_SECRET_KEY=... \
//	    go run ./cmd/gateway --addr=:8080 --metrics-addr=:9090
//
// # Usage
//
//	go run ./cmd/gateway --config=gateway.yaml
//	go run ./cmd/gateway --config=gateway.yaml --redemption=redis --redis-url=redis://localhost:6379/0
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/magland/hchat/api/httpserver"
	"github.com/magland/hchat/cmd/common"
	"github.com/magland/hchat/hub"
	"github.com/magland/hchat/metrics"
	"github.com/magland/hchat/protocol"
	"github.com/magland/hchat/services"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		addr        = flag.String("addr", "", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (disabled if empty)")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn or error")
		logJSON     = flag.Bool("log-json", false, "Log as JSON")
		pprof       = flag.Bool("pprof", false, "Enable the pprof API")
		backend     = flag.String("redemption", "", "Redemption guard: memory, redis, postgres or none")
		redisURL    = flag.String("redis-url", "", "Redis URL for the redis redemption guard")
	)
	flag.Parse()

	cfg := common.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = common.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "Environment error: %v\n", err)
		os.Exit(1)
	}

	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logJSON {
		cfg.LogFormat = "json"
	}
	if *pprof {
		cfg.EnablePprof = true
	}
	if *backend != "" {
		cfg.Redemption.Backend = *backend
	}
	if *redisURL != "" {
		cfg.Redemption.RedisURL = *redisURL
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config) error {
	log, err := common.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	systemKey, systemPublicKey, err := common.LoadSystemKeys(cfg.Keys)
	if err != nil {
		return err
	}

	secret, err := hub.DeriveSecretKey(cfg.Hub.SecretKey, cfg.Hub.SubscribeKey)
	if err != nil {
		return err
	}
	h, err := hub.New(hub.Config{
		SubscribeKey: cfg.Hub.SubscribeKey,
		SecretKey:    secret,
		Buffer:       cfg.Hub.Buffer,
		Log:          log.With("component", "hub"),
	})
	if err != nil {
		return err
	}
	defer h.Close()

	guard, closeGuard, err := common.OpenGuard(ctx, cfg.Redemption, log)
	if err != nil {
		return fmt.Errorf("redemption guard: %w", err)
	}
	defer closeGuard()

	opts := []protocol.GateOption{protocol.WithLogger(log.With("component", "gate"))}
	if guard != nil {
		opts = append(opts, protocol.WithRedemptionGuard(guard))
	}
	gate, err := protocol.NewGate(cfg.ProtocolConfig(), systemKey, h, h, opts...)
	if err != nil {
		return err
	}

	m, err := metrics.New(metrics.DefaultNamespace, cfg.MetricsAddr)
	if err != nil {
		return err
	}
	if err := m.RegisterHub(metrics.DefaultNamespace, h.Stats); err != nil {
		return err
	}

	api := services.NewHandler(gate, services.HandlerConfig{
		Log:            log,
		Metrics:        m,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		Metrics:                  m,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            cfg.DrainDuration,
		GracefulShutdownDuration: cfg.ShutdownGrace,
		ReadTimeout:              cfg.RequestTimeout,
	}, api, h)
	if err != nil {
		return err
	}

	log.Info("Starting hchat gateway",
		"systemPublicKey", systemPublicKey.String(),
		"subscribeKey", cfg.Hub.SubscribeKey,
		"redemption", cfg.Redemption.Backend)
	errs := srv.RunInBackground()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errs:
	}
	log.Info("Shutting down")
	return errors.Join(serveErr, srv.Shutdown(context.Background()))
}
