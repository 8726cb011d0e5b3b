package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

type DiskInfo struct {
	Total       uint64
	Free        uint64 // available to this process
	Used        uint64
	UsedPercent float64
}

// EnsureFreeSpace returns a *DiskSpaceError when the filesystem holding path
// has less than minFree bytes available.
func EnsureFreeSpace(path string, minFree int64) (*DiskInfo, error) {
	info, err := GetDiskInfo(path)
	if err != nil {
		return nil, err
	}
	if minFree > 0 && info.Free < uint64(minFree) {
		return info, NewDiskSpaceError(path, minFree, info.Free)
	}
	return info, nil
}

// existingDir walks up from path to the nearest directory that exists, so a
// work dir can be checked before it is created
func existingDir(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// FormatBytes renders 1536 as "1.50 KB"
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// DirectorySize sums regular file sizes below path
func DirectorySize(path string) (int64, error) {
	var total int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

type DiskSpaceError struct {
	Path      string
	Required  int64
	Available uint64
}

func NewDiskSpaceError(path string, required int64, available uint64) *DiskSpaceError {
	return &DiskSpaceError{
		Path:      path,
		Required:  required,
		Available: available,
	}
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: required %s, available %s",
		e.Path,
		FormatBytes(uint64(e.Required)),
		FormatBytes(e.Available),
	)
}
