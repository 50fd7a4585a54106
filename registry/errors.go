package registry

import (
	"errors"
	"fmt"
)

var (
	ErrModelNotFound   = errors.New("model is not installed")
	ErrSpeakerNotFound = errors.New("speaker is not installed")
	ErrStyleNotFound   = errors.New("style is not installed")

	// ErrNoUpdateAvailable rejects an update for a model whose cached
	// update flag is unset. Run a waited rescan first if the flag may be
	// stale.
	ErrNoUpdateAvailable = errors.New("model has no update available")

	// ErrLastModel refuses the uninstall that would leave the registry
	// empty.
	ErrLastModel = errors.New("cannot uninstall the last remaining model")

	ErrUnsupportedVersion      = errors.New("unsupported manifest version")
	ErrUnsupportedArchitecture = errors.New("unsupported model architecture")

	// ErrDownloadFailed wraps transport and non-2xx failures while
	// fetching package bytes.
	ErrDownloadFailed = errors.New("model download failed")
)

// StorageKind categorizes filesystem failures for user-facing messages.
type StorageKind int

const (
	StorageIO StorageKind = iota
	StorageNoSpace
	StoragePermission
	StorageReadOnly
)

// StorageError is a categorized filesystem failure during install or
// uninstall.
type StorageError struct {
	Kind StorageKind
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	switch e.Kind {
	case StorageNoSpace:
		return fmt.Sprintf("not enough disk space to %s %s: %v", e.Op, e.Path, e.Err)
	case StoragePermission:
		return fmt.Sprintf("permission denied to %s %s: %v", e.Op, e.Path, e.Err)
	case StorageReadOnly:
		return fmt.Sprintf("read-only file system, cannot %s %s: %v", e.Op, e.Path, e.Err)
	default:
		return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
	}
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op, path string, err error) *StorageError {
	return &StorageError{Kind: classifyStorage(err), Op: op, Path: path, Err: err}
}
