package common

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/magland/hchat/protocol"
	"github.com/magland/hchat/redemption"
)

// OpenGuard builds the redemption guard named by cfg.Backend and starts its
// cleanup loop, which stops with ctx. The returned close function releases
// the backend connection. BackendNone yields a nil guard.
func OpenGuard(ctx context.Context, cfg RedemptionConfig, log *slog.Logger) (protocol.RedemptionGuard, func() error, error) {
	noop := func() error { return nil }
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}

	switch cfg.Backend {
	case BackendNone:
		log.Warn("redemption guard disabled, tokens can be replayed until they expire")
		return nil, noop, nil

	case "", BackendMemory:
		guard := redemption.NewMemoryGuard(clock.New())
		go guard.Run(ctx, interval)
		return guard, noop, nil

	case BackendRedis:
		client, err := redemption.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis redemption guard", "addr", client.Options().Addr)
		return redemption.NewRedisGuard(client, cfg.RedisPrefix), client.Close, nil

	case BackendPostgres:
		db, err := redemption.OpenPostgres(&cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		guard, err := redemption.NewPostgresGuard(ctx, db, clock.New())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("using postgres redemption guard", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n, err := guard.Cleanup(ctx)
					if err != nil {
						log.Warn("redemption cleanup failed", "err", err)
						continue
					}
					if n > 0 {
						log.Debug("expired redemptions removed", "count", n)
					}
				}
			}
		}()
		return guard, guard.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown redemption backend %q", cfg.Backend)
	}
}
