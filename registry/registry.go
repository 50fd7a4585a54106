// Package registry maintains the set of installed speech synthesis model
// packages.
//
// The registry owns a models directory, scans it for package files,
// validates each manifest, and publishes an ordered in-memory index of the
// result. Reads are served from the published index without locking; a
// rescan builds a whole new index and swaps it in atomically. Each scan
// also reconciles the index against the model catalog to flag entries with
// newer published versions, either synchronously or on a detached
// background pass.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hibiki-voice/hibiki/catalog"
	"github.com/hibiki-voice/hibiki/envconfig"
	"github.com/hibiki-voice/hibiki/hvm"
)

const (
	supportedManifestMajor = 1
	supportedManifestMinor = 0
)

var supportedArchitectures = []string{
	"Style-Bert-VITS2",
	"Style-Bert-VITS2 (JP-Extra)",
}

// defaultModels is installed from the catalog when a scan of a fresh
// models directory comes back empty, so the server never starts without at
// least one voice.
var defaultModels = []string{
	"3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3",
}

type Registry struct {
	dir string
	hub *catalog.Client

	// rescanMu serializes rescans. Readers go through the cache pointer
	// and never take it.
	rescanMu sync.Mutex
	cache    atomic.Pointer[orderedmap.OrderedMap[string, *Entry]]

	checkTimeout    time.Duration
	checkLimit      int
	bootstrapModels []string
}

// New creates a registry over dir, creating the directory if needed. A nil
// hub falls back to the client for the configured catalog. No scan happens
// until the first Entries call.
func New(dir string, hub *catalog.Client) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create models directory %s: %w", dir, err)
	}
	if hub == nil {
		hub = catalog.DefaultClient()
	}

	limit := int(envconfig.MaxUpdateChecks())
	if limit < 1 {
		limit = 1
	}

	slog.Info("models directory", "path", dir)

	return &Registry{
		dir:             dir,
		hub:             hub,
		checkTimeout:    5 * time.Second,
		checkLimit:      limit,
		bootstrapModels: defaultModels,
	}, nil
}

// Dir returns the models directory the registry scans.
func (r *Registry) Dir() string {
	return r.dir
}

// Bootstrap performs the initial scan and, when the directory holds no
// usable package, installs the default model set from the catalog. Every
// failure is logged and swallowed so the server comes up even when the
// catalog is unreachable.
func (r *Registry) Bootstrap(ctx context.Context) {
	entries := r.Entries(ctx, true, false)
	if entries.Len() > 0 {
		slog.Info("installed models", "count", entries.Len())
		for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
			slog.Info("model available", "entry", pair.Value)
		}
		return
	}

	if envconfig.NoBootstrap() {
		slog.Info("no models installed and bootstrap is disabled", "dir", r.dir)
		return
	}

	slog.Warn("no models installed, installing default models", "models", r.bootstrapModels)
	for _, id := range r.bootstrapModels {
		if _, err := r.InstallFromURL(ctx, r.hub.DownloadURL(id)); err != nil {
			slog.Warn("could not install default model", "model", id, "error", err)
		}
	}
}

// Entries returns the registry index keyed by model UUID, ordered by model
// display name. The cached index is returned as is unless force is set or
// no scan has happened yet. A rescan triggers an update check against the
// catalog; wait makes the check synchronous.
//
// Scan problems never fail the call. Unreadable or unsupported packages
// are skipped with a warning and the index reflects whatever loaded.
func (r *Registry) Entries(ctx context.Context, force, wait bool) *orderedmap.OrderedMap[string, *Entry] {
	if !force {
		if cached := r.cache.Load(); cached != nil {
			return cached
		}
	}
	return r.rescan(ctx, wait)
}

func (r *Registry) rescan(ctx context.Context, wait bool) *orderedmap.OrderedMap[string, *Entry] {
	r.rescanMu.Lock()
	defer r.rescanMu.Unlock()

	previous := r.cache.Load()

	var paths []string
	for _, format := range []hvm.Format{hvm.FormatPacked, hvm.FormatLegacy} {
		matches, err := filepath.Glob(filepath.Join(r.dir, "*."+format.Ext()))
		if err != nil {
			slog.Warn("model directory scan failed", "dir", r.dir, "format", format, "error", err)
			continue
		}
		paths = append(paths, matches...)
	}

	var scanned []*Entry
	seen := make(map[string]string)
	for _, path := range paths {
		entry, err := r.load(path)
		if err != nil {
			slog.Warn("skipping model package", "path", path, "error", err)
			continue
		}

		if first, ok := seen[entry.Manifest.UUID]; ok {
			slog.Warn("skipping duplicate model package", "model", entry.Manifest.UUID, "path", path, "keeping", first)
			continue
		}
		seen[entry.Manifest.UUID] = path

		if previous != nil {
			if old, ok := previous.Get(entry.Manifest.UUID); ok {
				entry.SetLoaded(old.Loaded())
			}
		}

		scanned = append(scanned, entry)
	}

	slices.SortStableFunc(scanned, func(a, b *Entry) int {
		if c := strings.Compare(a.Manifest.Name, b.Manifest.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Manifest.UUID, b.Manifest.UUID)
	})

	entries := orderedmap.New[string, *Entry]()
	for _, entry := range scanned {
		entries.Set(entry.Manifest.UUID, entry)
	}
	r.cache.Store(entries)

	slog.Debug("scanned models directory", "dir", r.dir, "files", len(paths), "models", entries.Len())

	if wait {
		r.checkUpdates(ctx)
	} else {
		go func() {
			defer func() {
				if err := recover(); err != nil {
					slog.Error("update check panicked", "error", err)
				}
			}()
			r.checkUpdates(context.Background())
		}()
	}

	return entries
}

func (r *Registry) load(path string) (*Entry, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	manifest, format, err := hvm.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := checkSupported(manifest); err != nil {
		return nil, err
	}

	return newEntry(path, fi.Size(), fi.ModTime(), format, manifest)
}

// checkSupported rejects manifests this build cannot synthesize from.
// Newer minor versions within the supported major are accepted with a
// warning since the format is forward compatible there.
func checkSupported(m *hvm.Manifest) error {
	major, minor := m.MajorMinor()
	if major != supportedManifestMajor {
		return fmt.Errorf("%w: manifest version %s, supported %d.x", ErrUnsupportedVersion, m.ManifestVersion, supportedManifestMajor)
	}
	if minor > supportedManifestMinor {
		slog.Warn("manifest version is newer than this build, continuing", "model", m.UUID, "version", m.ManifestVersion)
	}

	if !slices.Contains(supportedArchitectures, m.Architecture) {
		return fmt.Errorf("%w: %s, supported %s", ErrUnsupportedArchitecture, m.Architecture, strings.Join(supportedArchitectures, ", "))
	}
	return nil
}
