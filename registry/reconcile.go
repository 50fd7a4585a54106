package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"

	"github.com/hibiki-voice/hibiki/catalog"
	"github.com/hibiki-voice/hibiki/logutil"
)

// checkUpdates refreshes every entry's latest known version from the
// catalog. Checks run in parallel with bounded concurrency and a per-entry
// timeout. This is strictly best effort: a model missing from the catalog,
// a timeout, or any other failure leaves that entry's previous state in
// place, and nothing here is ever retried or propagated.
func (r *Registry) checkUpdates(ctx context.Context) {
	entries := r.cache.Load()
	if entries == nil || entries.Len() == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(r.checkLimit)
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		entry := pair.Value
		g.Go(func() error {
			r.checkEntry(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	var updatable []string
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.UpdateAvailable() {
			updatable = append(updatable, fmt.Sprintf("%s %s (installed %s)", pair.Value.Manifest.Name, pair.Value.LatestVersion(), pair.Value.Manifest.Version))
		}
	}
	if len(updatable) > 0 {
		slog.Info("model updates available", "models", updatable)
	}
}

func (r *Registry) checkEntry(ctx context.Context, entry *Entry) {
	ctx, cancel := context.WithTimeout(ctx, r.checkTimeout)
	defer cancel()

	logutil.Trace("checking model for updates", "model", entry.Manifest.UUID)

	info, err := r.hub.Model(ctx, entry.Manifest.UUID)
	switch {
	case errors.Is(err, catalog.ErrModelNotFound):
		// not published on the hub, nothing to reconcile against
		return
	case err != nil:
		slog.Warn("update check failed", "model", entry.Manifest.UUID, "error", err)
		return
	}

	latest, ok := info.PackedVersion()
	if !ok {
		slog.Warn("catalog lists no packed file for model", "model", entry.Manifest.UUID)
		return
	}
	if !semver.IsValid("v" + latest) {
		slog.Warn("catalog reports malformed model version", "model", entry.Manifest.UUID, "version", latest)
		return
	}

	entry.setLatest(latest, semver.Compare("v"+latest, "v"+entry.Manifest.Version) > 0)
}
