package cmd

import (
	"context"
	"fmt"

	"github.com/layer-3/fluxauth/adapters/health"
	"github.com/layer-3/fluxauth/adapters/store"
	"github.com/layer-3/fluxauth/config"
	"github.com/layer-3/fluxauth/ports"
	"github.com/layer-3/fluxauth/service"
)

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg config.StoreConfig) (ports.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store.NewRedisStore(client, store.WithPrefix(cfg.Prefix)), nil
	case config.BackendBolt:
		s, err := store.NewBoltStoreFromFile(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// newGates builds the issuance health gates, or nil when they are disabled.
func newGates(cfg config.HealthConfig) *service.Gates {
	if !cfg.Enabled {
		return nil
	}
	gates := &service.Gates{
		Runtime:  health.NewDockerProbe(cfg.DockerSocket, cfg.ProbeTimeout),
		Hardware: health.NewHostHardware(cfg.NodeTier),
		Distress: health.CalmReporter{},
	}
	if cfg.DistressURL != "" {
		gates.Distress = health.NewHTTPDistressReporter(cfg.DistressURL, cfg.ProbeTimeout)
	}
	return gates
}
