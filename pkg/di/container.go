package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vidstream/application/serviceimpl"
	"vidstream/domain/ports"
	"vidstream/domain/repositories"
	"vidstream/domain/services"
	"vidstream/infrastructure/messaging"
	natspkg "vidstream/infrastructure/nats"
	"vidstream/infrastructure/postgres"
	rabbitpkg "vidstream/infrastructure/rabbitmq"
	redispkg "vidstream/infrastructure/redis"
	"vidstream/infrastructure/storage"
	"vidstream/infrastructure/transcoder"
	"vidstream/infrastructure/websocket"
	"vidstream/interfaces/api/handlers"
	"vidstream/pkg/cache"
	"vidstream/pkg/config"
	"vidstream/pkg/logger"
	"vidstream/pkg/scheduler"
)

// Role selects which side of the system a process hosts
type Role int

const (
	RoleAPI Role = iota
	RoleWorker
	RoleEnqueue // CLI: database and queue producer only
)

func (r Role) String() string {
	switch r {
	case RoleAPI:
		return "api"
	case RoleWorker:
		return "worker"
	case RoleEnqueue:
		return "enqueue"
	}
	return "unknown"
}

type Container struct {
	Role   Role
	Config *config.Config

	// Infrastructure
	DB             *gorm.DB
	RedisClient    *redispkg.Client // optional
	NATSClient     *natspkg.Client  // job stream and progress pub/sub
	NATSPublisher  *natspkg.Publisher
	RabbitClient   *rabbitpkg.Client
	Cache          ports.CachePort
	Locker         ports.LockerPort
	ObjectStore    ports.ObjectStorePort
	Transcoder     ports.TranscoderPort
	EventScheduler scheduler.EventScheduler

	// Repositories
	VideoRepository        repositories.VideoRepository
	ViewSnapshotRepository repositories.ViewSnapshotRepository

	// Messaging ports
	JobQueue           ports.JobQueuePort
	JobConsumer        ports.JobConsumerPort // worker only
	ProgressPublisher  ports.ProgressPublisherPort
	ProgressSubscriber ports.ProgressSubscriberPort // api only

	// Services
	TrendingQueryService      services.TrendingQueryService
	VideoStatusService        services.VideoStatusService
	MediaProcessingService    services.MediaProcessingService
	TrendingCalculatorService services.TrendingCalculatorService
	SnapshotRecorderService   services.SnapshotRecorderService
	StorageService            services.StorageService
	StuckDetector             *serviceimpl.StuckDetectorService
	StorageCleanup            *serviceimpl.StorageCleanupService

	// WebSocket & Broadcasting
	Hub                 *websocket.Hub
	ProgressBroadcaster *websocket.ProgressBroadcaster
}

func NewContainer(role Role) *Container {
	return &Container{Role: role}
}

func (c *Container) Initialize() error {
	if err := c.initConfig(); err != nil {
		return err
	}

	if err := c.initLogger(); err != nil {
		return err
	}

	if err := c.initInfrastructure(); err != nil {
		return err
	}

	if err := c.initMessaging(); err != nil {
		return err
	}

	c.initRepositories()
	c.initServices()

	if c.Role == RoleWorker {
		if err := c.initWorker(); err != nil {
			return err
		}
	}

	if c.Role == RoleAPI {
		c.initProgressBroadcaster()
	}

	logger.Info("Container initialized", "role", c.Role.String())
	return nil
}

func (c *Container) initConfig() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	c.Config = cfg
	return nil
}

func (c *Container) initLogger() error {
	logConfig := logger.Config{
		Level:      c.Config.Log.Level,
		Format:     c.Config.Log.Format,
		Output:     c.Config.Log.Output,
		FilePath:   c.Config.Log.FilePath,
		MaxSize:    c.Config.Log.MaxSize,
		MaxBackups: c.Config.Log.MaxBackups,
		MaxAge:     c.Config.Log.MaxAge,
		Compress:   c.Config.Log.Compress,
	}

	if err := logger.Init(logConfig); err != nil {
		return err
	}

	logger.Info("Logger initialized",
		"level", c.Config.Log.Level,
		"format", c.Config.Log.Format,
		"output", c.Config.Log.Output,
	)
	return nil
}

func (c *Container) initInfrastructure() error {
	dbConfig := postgres.DatabaseConfig{
		Host:     c.Config.Database.Host,
		Port:     c.Config.Database.Port,
		User:     c.Config.Database.User,
		Password: c.Config.Database.Password,
		DBName:   c.Config.Database.DBName,
		SSLMode:  c.Config.Database.SSLMode,
		LogLevel: c.Config.Database.LogLevel,
	}

	db, err := postgres.NewDatabase(dbConfig)
	if err != nil {
		return err
	}
	c.DB = db
	logger.Info("Database connected", "host", c.Config.Database.Host, "db", c.Config.Database.DBName)

	// the CLI never migrates
	if c.Role != RoleEnqueue {
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		logger.Info("Database migrated")
	}

	// Redis is optional; without it each process caches and locks on its own
	if c.Config.RedisEnabled() {
		redisClient, err := redispkg.NewClient(&c.Config.Redis)
		if err != nil {
			logger.Warn("Redis client initialization failed (using in-process cache)", "error", err)
		} else {
			c.RedisClient = redisClient
			logger.Info("Redis client initialized", "url", c.Config.Redis.URL)
		}
	}
	if c.RedisClient != nil {
		c.Cache = c.RedisClient
		c.Locker = c.RedisClient
	} else {
		memory := cache.NewMemory()
		c.Cache = memory
		c.Locker = memory
	}

	c.EventScheduler = scheduler.NewEventScheduler()
	return nil
}

// initMessaging connects the configured queue driver. Progress events always
// travel over NATS core pub/sub; when NATS is unreachable and the queue runs
// on RabbitMQ, progress is dropped and the status endpoint still works.
func (c *Container) initMessaging() error {
	natsClient, natsErr := natspkg.NewClient(natspkg.ClientConfig{
		URL:    c.Config.NATS.URL,
		Name:   c.Config.App.Name + "-" + c.Role.String(),
		MaxAge: 24 * time.Hour,
	})
	if natsErr != nil {
		logger.Warn("NATS client initialization failed", "url", c.Config.NATS.URL, "error", natsErr)
	} else {
		c.NATSClient = natsClient
		c.NATSPublisher = natspkg.NewPublisher(natsClient)
		logger.Info("NATS client initialized", "url", c.Config.NATS.URL)
	}

	switch c.Config.Queue.Driver {
	case "rabbitmq":
		rabbitClient, err := rabbitpkg.NewClient(rabbitpkg.ClientConfig{
			URL:             c.Config.RabbitMQ.URL,
			QueueName:       c.Config.RabbitMQ.QueueName,
			MaxDeliver:      c.Config.Queue.MaxDeliver,
			ConsumerTimeout: c.Config.RabbitMQ.ConsumerTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect rabbitmq: %w", err)
		}
		c.RabbitClient = rabbitClient
		c.JobQueue = messaging.NewRabbitMQJobQueue(rabbitClient)
		if c.Role == RoleWorker {
			c.JobConsumer = messaging.NewRabbitMQJobConsumer(rabbitClient, messaging.RabbitMQJobConsumerConfig{
				Concurrency:     c.Config.Worker.Concurrency,
				NakDelay:        c.Config.Queue.NakDelay,
				ShutdownTimeout: c.Config.Worker.ShutdownTimeout,
			})
		}
		logger.Info("Job queue initialized", "driver", "rabbitmq", "queue", c.Config.RabbitMQ.QueueName)

	case "nats", "":
		if c.NATSClient == nil {
			return fmt.Errorf("queue driver nats requires a NATS connection: %w", natsErr)
		}
		c.JobQueue = messaging.NewNATSJobQueue(c.NATSClient, c.NATSPublisher)
		if c.Role == RoleWorker {
			c.JobConsumer = messaging.NewNATSJobConsumer(c.NATSClient, messaging.NATSJobConsumerConfig{
				Concurrency:     c.Config.Worker.Concurrency,
				AckWait:         c.Config.Queue.AckWait,
				MaxDeliver:      c.Config.Queue.MaxDeliver,
				NakDelay:        c.Config.Queue.NakDelay,
				ShutdownTimeout: c.Config.Worker.ShutdownTimeout,
			})
		}
		logger.Info("Job queue initialized", "driver", "nats")

	default:
		return fmt.Errorf("unknown queue driver %q", c.Config.Queue.Driver)
	}

	if c.NATSClient != nil {
		c.ProgressPublisher = messaging.NewNATSProgressPublisher(c.NATSPublisher)
		if c.Role == RoleAPI {
			c.ProgressSubscriber = messaging.NewNATSProgressSubscriber(c.NATSClient.Conn())
		}
	} else {
		c.ProgressPublisher = messaging.NoopProgressPublisher{}
	}
	return nil
}

func (c *Container) initRepositories() {
	c.VideoRepository = postgres.NewVideoRepository(c.DB)
	c.ViewSnapshotRepository = postgres.NewViewSnapshotRepository(c.DB)
	logger.Info("Repositories initialized")
}

func (c *Container) initServices() {
	c.TrendingQueryService = serviceimpl.NewTrendingQueryService(c.VideoRepository, c.Cache, c.Config.Trending.CategoryCacheTTL)
	c.VideoStatusService = serviceimpl.NewVideoStatusService(c.VideoRepository, c.JobQueue)
	logger.Info("Services initialized")
}

// initWorker builds the media pipeline and every scheduled job
func (c *Container) initWorker() error {
	if err := c.initObjectStore(); err != nil {
		return err
	}

	tc, err := transcoder.NewFFmpegTranscoder(transcoder.FFmpegConfig{
		FFmpegPath:  c.Config.Transcoder.FFmpegPath,
		FFprobePath: c.Config.Transcoder.FFprobePath,
		Timeout:     c.Config.Transcoder.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize transcoder: %w", err)
	}
	c.Transcoder = tc

	c.MediaProcessingService = serviceimpl.NewMediaProcessingService(
		c.VideoRepository,
		c.Transcoder,
		c.ObjectStore,
		c.ProgressPublisher,
		serviceimpl.MediaProcessingConfig{
			TempPath:      c.Config.Storage.TempPath,
			CleanupSource: c.Config.Storage.CleanupSource,
			MinFreeBytes:  c.Config.Storage.MinFreeBytes,
			Heartbeat:     c.Config.Worker.HeartbeatInterval,
			Thumbnail: ports.ThumbnailSpec{
				AtSecond: c.Config.Transcoder.ThumbAtSecond,
				Width:    c.Config.Transcoder.ThumbWidth,
				Height:   c.Config.Transcoder.ThumbHeight,
			},
			HLS: ports.HLSSpec{
				SegmentSeconds: c.Config.Transcoder.SegmentSeconds,
				VideoBitrate:   c.Config.Transcoder.VideoBitrate,
				MaxRate:        c.Config.Transcoder.MaxRate,
				BufSize:        c.Config.Transcoder.BufSize,
				AudioBitrate:   c.Config.Transcoder.AudioBitrate,
				Preset:         c.Config.Transcoder.Preset,
			},
		},
	)

	c.TrendingCalculatorService = serviceimpl.NewTrendingCalculatorService(
		c.VideoRepository,
		c.ViewSnapshotRepository,
		c.Locker,
		c.EventScheduler,
		serviceimpl.TrendingCalculatorConfig{
			Interval:  c.Config.Trending.CalculatorInterval,
			BatchSize: c.Config.Trending.BatchSize,
		},
	)

	c.SnapshotRecorderService = serviceimpl.NewSnapshotRecorderService(
		c.VideoRepository,
		c.ViewSnapshotRepository,
		c.Locker,
		c.EventScheduler,
		serviceimpl.SnapshotRecorderConfig{
			Interval:  c.Config.Trending.SnapshotInterval,
			BatchSize: c.Config.Trending.BatchSize,
			Retention: c.Config.Trending.SnapshotRetention,
		},
	)

	c.StuckDetector = serviceimpl.NewStuckDetectorService(
		serviceimpl.StuckDetectorConfig{
			Interval:   c.Config.Worker.StuckInterval,
			StaleAfter: c.Config.Worker.StuckAfter,
		},
		c.VideoRepository,
		c.EventScheduler,
	)

	c.StorageCleanup = serviceimpl.NewStorageCleanupService(
		serviceimpl.StorageCleanupConfig{
			TempPath:    c.Config.Storage.TempPath,
			CleanupCron: c.Config.Worker.CleanupCron,
			MaxAge:      c.Config.Worker.TempMaxAge,
		},
		c.EventScheduler,
	)
	c.StorageService = c.StorageCleanup

	return c.registerJobs()
}

func (c *Container) registerJobs() error {
	register := []struct {
		name string
		fn   func() error
	}{
		{"trending calculator", c.TrendingCalculatorService.RegisterJob},
		{"snapshot recorder", c.SnapshotRecorderService.RegisterJob},
		{"stuck detector", c.StuckDetector.RegisterDetectorJob},
		{"storage cleanup", c.StorageCleanup.RegisterCleanupJob},
	}
	for _, r := range register {
		if err := r.fn(); err != nil {
			return fmt.Errorf("failed to register %s job: %w", r.name, err)
		}
	}
	logger.Info("Scheduled jobs registered", "count", len(register))
	return nil
}

func (c *Container) initObjectStore() error {
	var (
		store ports.ObjectStorePort
		err   error
	)

	switch c.Config.Storage.Type {
	case "s3":
		store, err = storage.NewS3Storage(storage.S3StorageConfig{
			Endpoint:  c.Config.Storage.S3.Endpoint,
			AccessKey: c.Config.Storage.S3.AccessKey,
			SecretKey: c.Config.Storage.S3.SecretKey,
			Bucket:    c.Config.Storage.S3.Bucket,
			UseSSL:    c.Config.Storage.S3.UseSSL,
			Region:    c.Config.Storage.S3.Region,
			PublicURL: c.Config.Storage.S3.PublicURL,
		})
	case "r2":
		store, err = storage.NewR2Storage(storage.R2StorageConfig{
			AccountID:       c.Config.Storage.R2.AccountID,
			AccessKeyID:     c.Config.Storage.R2.AccessKeyID,
			SecretAccessKey: c.Config.Storage.R2.SecretAccessKey,
			BucketName:      c.Config.Storage.R2.BucketName,
			PublicURL:       c.Config.Storage.R2.PublicURL,
		})
	case "local", "":
		store, err = storage.NewLocalStorage(storage.LocalStorageConfig{
			BasePath: c.Config.Storage.BasePath,
			BaseURL:  c.Config.Storage.BaseURL,
		})
	default:
		return fmt.Errorf("unknown storage type %q", c.Config.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", c.Config.Storage.Type, err)
	}

	c.ObjectStore = store
	logger.Info("Object storage initialized", "type", c.Config.Storage.Type)
	return nil
}

func (c *Container) initProgressBroadcaster() {
	c.Hub = websocket.NewHub()
	if c.ProgressSubscriber == nil {
		logger.Warn("Progress broadcaster disabled (NATS not available)")
		return
	}
	c.ProgressBroadcaster = websocket.NewProgressBroadcaster(c.ProgressSubscriber, c.Hub)
}

// StartBackground starts the long-running parts of the api process
func (c *Container) StartBackground(ctx context.Context) error {
	if c.Hub != nil {
		go c.Hub.Run(ctx)
	}
	if c.ProgressBroadcaster != nil {
		if err := c.ProgressBroadcaster.Start(); err != nil {
			return fmt.Errorf("failed to start progress broadcaster: %w", err)
		}
	}
	return nil
}

// HealthChecks returns the readiness checks for every connected backend
func (c *Container) HealthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient.Ping
	}
	if c.NATSClient != nil {
		checks["nats"] = func(context.Context) error {
			if !c.NATSClient.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}
	if c.RabbitClient != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if !c.RabbitClient.IsConnected() {
				return errors.New("rabbitmq disconnected")
			}
			return nil
		}
	}
	// a consumer that gave up resubscribing must fail the worker's readiness
	if c.JobConsumer != nil {
		checks["consumer"] = func(context.Context) error {
			if !c.JobConsumer.IsRunning() {
				return errors.New("job consumer not running")
			}
			return nil
		}
	}
	return checks
}

func (c *Container) Cleanup() error {
	logger.Info("Starting cleanup...")

	if c.ProgressBroadcaster != nil {
		c.ProgressBroadcaster.Stop()
		logger.Info("Progress broadcaster stopped")
	}

	if c.JobConsumer != nil && c.JobConsumer.IsRunning() {
		if err := c.JobConsumer.Stop(); err != nil {
			logger.Warn("Failed to stop job consumer", "error", err)
		} else {
			logger.Info("Job consumer stopped")
		}
	}

	if c.EventScheduler != nil && c.EventScheduler.IsRunning() {
		c.EventScheduler.Stop()
		logger.Info("Event scheduler stopped")
	}

	if c.NATSClient != nil {
		if err := c.NATSClient.Close(); err != nil {
			logger.Warn("Failed to close NATS connection", "error", err)
		} else {
			logger.Info("NATS connection closed")
		}
	}

	if c.RabbitClient != nil {
		if err := c.RabbitClient.Close(); err != nil {
			logger.Warn("Failed to close RabbitMQ connection", "error", err)
		} else {
			logger.Info("RabbitMQ connection closed")
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			logger.Warn("Failed to close Redis connection", "error", err)
		} else {
			logger.Info("Redis connection closed")
		}
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Failed to close database connection", "error", err)
			} else {
				logger.Info("Database connection closed")
			}
		}
	}

	logger.Info("Cleanup completed")
	return nil
}

func (c *Container) GetConfig() *config.Config {
	return c.Config
}

func (c *Container) GetHandlerServices() *handlers.Services {
	svcs := &handlers.Services{
		TrendingQueryService: c.TrendingQueryService,
		VideoStatusService:   c.VideoStatusService,
		StorageService:       c.StorageService,
		JobQueue:             c.JobQueue,
		HealthChecks:         c.HealthChecks(),
	}
	if c.Role == RoleWorker {
		svcs.Scheduler = c.EventScheduler
	}
	return svcs
}
