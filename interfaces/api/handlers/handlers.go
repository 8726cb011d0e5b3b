package handlers

import (
	"vidstream/domain/ports"
	"vidstream/domain/services"
	"vidstream/pkg/scheduler"
)

// Services contains everything the HTTP layer calls into. Optional entries
// are nil on processes that do not host them.
type Services struct {
	TrendingQueryService services.TrendingQueryService
	VideoStatusService   services.VideoStatusService
	StorageService       services.StorageService  // worker only
	JobQueue             ports.JobQueuePort       // optional
	Scheduler            scheduler.EventScheduler // optional
	HealthChecks         map[string]HealthCheck
}

// Handlers contains all HTTP handlers
type Handlers struct {
	TrendingHandler   *TrendingHandler
	VideoHandler      *VideoHandler
	StorageHandler    *StorageHandler
	MonitoringHandler *MonitoringHandler
	HealthHandler     *HealthHandler
}

func NewHandlers(services *Services) *Handlers {
	return &Handlers{
		TrendingHandler:   NewTrendingHandler(services.TrendingQueryService),
		VideoHandler:      NewVideoHandler(services.VideoStatusService),
		StorageHandler:    NewStorageHandler(services.StorageService),
		MonitoringHandler: NewMonitoringHandler(services.JobQueue, services.Scheduler),
		HealthHandler:     NewHealthHandler(services.HealthChecks),
	}
}
