package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pbgui-console/internal/menu"
)

// Snapshot is one loaded generation of the catalog
type Snapshot struct {
	Catalog  *Catalog
	Composer *menu.Composer
	Version  uint64
	LoadedAt time.Time
	Source   string
}

// Registry holds the current catalog snapshot. Readers never block;
// Reload builds a complete new snapshot and swaps it in.
type Registry struct {
	source  Source
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	mu      sync.Mutex // serializes reloads
	logger  zerolog.Logger
}

// NewRegistry loads the catalog once and fails if the source cannot serve it
func NewRegistry(ctx context.Context, source Source, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		source: source,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
	if _, err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns the snapshot in use
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Version returns the version of the current snapshot
func (r *Registry) Version() uint64 {
	if s := r.current.Load(); s != nil {
		return s.Version
	}
	return 0
}

// Reload rebuilds the catalog from the source. On failure the previous
// snapshot stays in place.
func (r *Registry) Reload(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	cat, err := r.source.Load(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("source", r.source.Name()).Msg("Failed to load menu catalog")
		return nil, fmt.Errorf("load catalog from %s: %w", r.source.Name(), err)
	}

	snap := &Snapshot{
		Catalog:  cat,
		Composer: menu.NewComposer(cat.Store),
		Version:  r.version.Add(1),
		LoadedAt: time.Now(),
		Source:   r.source.Name(),
	}
	r.current.Store(snap)

	r.logger.Info().
		Str("source", snap.Source).
		Uint64("version", snap.Version).
		Strs("roles", cat.Store.Roles()).
		Int("management_nodes", menu.Count(cat.Management)).
		Dur("took", time.Since(start)).
		Msg("Menu catalog loaded")

	return snap, nil
}
