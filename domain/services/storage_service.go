package services

import (
	"context"
)

// StorageService keeps the worker scratch space in check
type StorageService interface {
	RunCleanup(ctx context.Context) (*CleanupSummary, error)
	GetStorageStats(ctx context.Context) (*StorageStats, error)
	RegisterCleanupJob() error
}

type CleanupSummary struct {
	FilesRemoved int   `json:"filesRemoved"`
	BytesFreed   int64 `json:"bytesFreed"`
}

type StorageStats struct {
	DiskTotal       uint64  `json:"diskTotal"`
	DiskFree        uint64  `json:"diskFree"`
	DiskUsed        uint64  `json:"diskUsed"`
	DiskUsedPercent float64 `json:"diskUsedPercent"`
	TempSize        int64   `json:"tempSize"`
}
