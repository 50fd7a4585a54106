package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hibiki-voice/hibiki/format"
	"github.com/hibiki-voice/hibiki/hvm"
)

// Install validates data as a model package, writes it into the models
// directory, and rescans. Reinstalling a model that is already present
// overwrites its existing file in place, wherever that file lives.
func (r *Registry) Install(ctx context.Context, data []byte) (*Entry, error) {
	manifest, fileFormat, err := hvm.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if err := checkSupported(manifest); err != nil {
		return nil, err
	}

	path := filepath.Join(r.dir, manifest.UUID+"."+fileFormat.Ext())
	if cached := r.cache.Load(); cached != nil {
		if existing, ok := cached.Get(manifest.UUID); ok {
			path = existing.Path
			slog.Info("replacing installed model", "model", manifest.UUID, "installed", existing.Manifest.Version, "incoming", manifest.Version)
		}
	}

	if err := r.writeFile(path, data); err != nil {
		return nil, err
	}

	slog.Info("installed model", "model", manifest.UUID, "name", manifest.Name, "version", manifest.Version, "path", path, "size", format.HumanBytes(int64(len(data))))

	entries := r.Entries(ctx, true, true)
	entry, ok := entries.Get(manifest.UUID)
	if !ok {
		return nil, fmt.Errorf("model %s missing after install rescan", manifest.UUID)
	}
	return entry, nil
}

// writeFile lands data at path through a rename so a crash mid-write never
// leaves a half-written package where the scanner will find it.
func (r *Registry) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(r.dir, "hibiki-*.partial")
	if err != nil {
		return storageError("create temporary file in", r.dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storageError("write package to", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return storageError("write package to", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return storageError("place package at", path, err)
	}
	return nil
}

// InstallFromURL downloads a package and installs it. Catalog model page
// URLs are accepted and resolved to their packed download endpoint; any
// other URL is fetched as is.
func (r *Registry) InstallFromURL(ctx context.Context, rawURL string) (*Entry, error) {
	downloadURL := rawURL
	if resolved, ok := r.hub.ResolveDownloadURL(rawURL); ok {
		downloadURL = resolved
	}

	slog.Info("downloading model package", "url", downloadURL)
	data, err := r.hub.Fetch(ctx, downloadURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownloadFailed, downloadURL, err)
	}

	return r.Install(ctx, data)
}

// Update reinstalls a model from the catalog when an update check has
// flagged a newer published version.
func (r *Registry) Update(ctx context.Context, id string) (*Entry, error) {
	entry, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !entry.UpdateAvailable() {
		return nil, fmt.Errorf("%w: %s is at %s", ErrNoUpdateAvailable, id, entry.Manifest.Version)
	}

	slog.Info("updating model", "model", id, "installed", entry.Manifest.Version, "latest", entry.LatestVersion())
	return r.InstallFromURL(ctx, r.hub.DownloadURL(id))
}

// Uninstall removes a model's package file and rescans. The last
// remaining model cannot be uninstalled.
func (r *Registry) Uninstall(ctx context.Context, id string) error {
	entries := r.Entries(ctx, false, false)

	entry, ok := entries.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}

	if entries.Len() <= 1 {
		return fmt.Errorf("%w: %s", ErrLastModel, id)
	}

	if err := os.Remove(entry.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storageError("remove", entry.Path, err)
	}

	slog.Info("uninstalled model", "model", id, "name", entry.Manifest.Name, "path", entry.Path)

	r.Entries(ctx, true, false)
	return nil
}
