//go:build !windows

package utils

import (
	"fmt"
	"syscall"
)

func GetDiskInfo(path string) (*DiskInfo, error) {
	path = existingDir(path)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", path, err)
	}

	bsize := uint64(stat.Bsize)
	total := stat.Blocks * bsize
	free := stat.Bavail * bsize
	used := total - stat.Bfree*bsize

	info := &DiskInfo{Total: total, Free: free, Used: used}
	if total > 0 {
		info.UsedPercent = float64(used) / float64(total) * 100
	}
	return info, nil
}
