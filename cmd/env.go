package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/mapsync"
	"github.com/sells-group/poi-cli/internal/points"
	"github.com/sells-group/poi-cli/internal/store"
	"github.com/sells-group/poi-cli/internal/surface"
)

// poiEnv holds the components shared by the commands.
type poiEnv struct {
	Storage store.Storage
	Points  *points.Store
}

// Close releases the storage connection.
func (e *poiEnv) Close() {
	if e.Storage != nil {
		_ = e.Storage.Close()
	}
}

// initPoints opens the configured storage and loads the persisted
// collection into a point store.
func initPoints(ctx context.Context) (*poiEnv, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	ps := points.New(ctx, st, points.WithKey(cfg.Store.Key))
	zap.L().Debug("point store ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("features", ps.Len()),
	)
	return &poiEnv{Storage: st, Points: ps}, nil
}

// initMap creates a synchronizer on a headless surface, attaches it to ps
// and frames the current features. Deferred work runs on the returned loop.
func initMap(ps *points.Store, container string) (*mapsync.Synchronizer, *mapsync.Loop, error) {
	loop := mapsync.NewLoop()
	ms := mapsync.New(surface.Factory(), loop)
	if err := ms.Initialize(container, cfg.Map); err != nil {
		return nil, nil, err
	}
	ms.Attach(ps)
	loop.Flush()
	return ms, loop, nil
}
