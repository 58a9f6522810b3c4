// Package sync turns server snapshots into hydrated content databases:
// it applies pushed config, downloads any media the snapshot references,
// drops assets whose media could not be fetched, and reconciles the
// assets directory afterwards.
package sync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	stdsync "sync"
	"time"

	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/config"
)

type Syncer struct {
	cfg   *config.Config
	store *config.Store
	dl    *Downloader
	apply func(*catalog.DB)
	now   func() time.Time

	mu      stdsync.Mutex
	running bool
	pending *catalog.Snapshot

	// Files must show up unreferenced on two consecutive syncs before
	// deletion, in case a snapshot arrives mid-download of another.
	prevUnused map[string]struct{}
}

// New builds a Syncer; apply receives each freshly hydrated database.
func New(cfg *config.Config, store *config.Store, apply func(*catalog.DB)) *Syncer {
	return &Syncer{
		cfg:        cfg,
		store:      store,
		dl:         NewDownloader(cfg.AssetsDir, filepath.Join(cfg.AssetsDir, "tmp")),
		apply:      apply,
		now:        time.Now,
		prevUnused: make(map[string]struct{}),
	}
}

// Apply processes a snapshot. Only one sync runs at a time; a snapshot
// arriving mid-run is queued and the newest queued one runs after,
// superseding any older queued snapshot.
func (s *Syncer) Apply(ctx context.Context, snap catalog.Snapshot) {
	s.mu.Lock()
	if s.running {
		s.pending = &snap
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for {
		s.process(ctx, snap)

		s.mu.Lock()
		if s.pending == nil {
			s.running = false
			s.mu.Unlock()
			return
		}
		snap = *s.pending
		s.pending = nil
		s.mu.Unlock()
	}
}

func (s *Syncer) process(ctx context.Context, snap catalog.Snapshot) {
	started := s.now()

	if snap.Config != nil {
		s.store.SetServer(config.ParseServerConfig(snap.Config))
	}

	filtered := s.fetchMedia(ctx, snap)

	db, err := catalog.Hydrate(filtered, s.cfg.AssetsDir, s.now())
	if err != nil {
		slog.Error("snapshot failed to hydrate, keeping previous content", "err", err)
		return
	}
	s.apply(db)
	slog.Info("sync applied",
		"assets", len(db.Assets),
		"rotators", len(db.Rotators),
		"stopsets", len(db.Stopsets),
		"took", time.Since(started))

	s.cleanup(db)
}

// fetchMedia downloads everything the snapshot references. An asset whose
// main file fails is dropped from this sync entirely; a failed alternate
// just disappears from the asset.
func (s *Syncer) fetchMedia(ctx context.Context, snap catalog.Snapshot) catalog.Snapshot {
	out := snap
	out.Assets = make([]catalog.AssetRecord, 0, len(snap.Assets))
	for _, a := range snap.Assets {
		if err := s.dl.Fetch(ctx, a.File); err != nil {
			slog.Warn("skipping asset, media unavailable", "asset", a.Name, "err", err)
			continue
		}
		if len(a.Alternates) > 0 {
			alts := make([]catalog.FileRecord, 0, len(a.Alternates))
			for _, alt := range a.Alternates {
				if err := s.dl.Fetch(ctx, alt); err != nil {
					slog.Warn("dropping alternate, media unavailable",
						"asset", a.Name, "file", alt.Filename, "err", err)
					continue
				}
				alts = append(alts, alt)
			}
			a.Alternates = alts
		}
		out.Assets = append(out.Assets, a)
	}
	return out
}

// cleanup deletes media files no longer referenced by the database, but
// only once a file has been unreferenced across two consecutive syncs.
func (s *Syncer) cleanup(db *catalog.DB) {
	used := db.UsedFilenames()
	unused := make(map[string]struct{})

	root := s.cfg.AssetsDir
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := used[rel]; !ok {
			unused[rel] = struct{}{}
		}
		return nil
	})
	if err != nil {
		slog.Warn("asset cleanup scan failed", "err", err)
		return
	}

	for rel := range unused {
		if _, ok := s.prevUnused[rel]; !ok {
			continue
		}
		if err := os.Remove(filepath.Join(root, rel)); err != nil {
			slog.Warn("could not remove stale media", "file", rel, "err", err)
			continue
		}
		slog.Info("removed stale media", "file", rel)
		delete(unused, rel)
	}
	s.prevUnused = unused
}
