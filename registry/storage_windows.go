//go:build windows

package registry

import (
	"errors"
	"os"
	"syscall"
)

const (
	errorDiskFull       = syscall.Errno(112) // ERROR_DISK_FULL
	errorWriteProtected = syscall.Errno(19)  // ERROR_WRITE_PROTECT
)

func classifyStorage(err error) StorageKind {
	switch {
	case errors.Is(err, errorDiskFull):
		return StorageNoSpace
	case errors.Is(err, os.ErrPermission):
		return StoragePermission
	case errors.Is(err, errorWriteProtected):
		return StorageReadOnly
	default:
		return StorageIO
	}
}
