//go:build windows

package utils

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func GetDiskInfo(path string) (*DiskInfo, error) {
	path = existingDir(path)

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %s: %w", path, err)
	}

	var available, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &available, &total, &totalFree); err != nil {
		return nil, fmt.Errorf("GetDiskFreeSpaceEx %s: %w", path, err)
	}

	used := total - totalFree
	info := &DiskInfo{Total: total, Free: available, Used: used}
	if total > 0 {
		info.UsedPercent = float64(used) / float64(total) * 100
	}
	return info, nil
}
