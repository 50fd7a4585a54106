//go:build unix

package registry

import (
	"errors"
	"os"
	"syscall"
)

func classifyStorage(err error) StorageKind {
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return StorageNoSpace
	case errors.Is(err, os.ErrPermission):
		return StoragePermission
	case errors.Is(err, syscall.EROFS):
		return StorageReadOnly
	default:
		return StorageIO
	}
}
