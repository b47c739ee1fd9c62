package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpHandler "github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/inbound/http"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/inbound/worker"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/fsstore"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/memory"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/postgres"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/queue"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/redisstore"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/s3store"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/config"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/service"
	"github.com/anthanhphan/go-resumable-transfer/pkg/idgen"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	cfg    *config.Config
	server *httpHandler.Server
	svc    *service.TransferServiceImpl

	localQueue  *queue.LocalQueue
	asynqServer *asynq.Server
	processor   *worker.Processor

	closers []func()
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	a := &App{cfg: cfg}
	ctx := context.Background()

	// 3. Redis is shared by the redis session store, asynq and the id clock
	var redisClient *redis.Client
	if cfg.Sessions.Driver == "redis" || cfg.Queue.Driver == "asynq" || cfg.App.RedisClock {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}

	// 4. Snowflake IDGen
	var clock idgen.Clock
	if cfg.App.RedisClock {
		clock = idgen.NewRedisClock(redisClient)
	}
	idGen, err := idgen.NewGenerator(cfg.App.NodeID, clock)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to init id generator: %w", err)
	}

	// 5. Outbound adapters
	chunks, artifacts, err := a.buildStorage(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	sessions, err := a.buildSessions(ctx, redisClient)
	if err != nil {
		a.close()
		return nil, err
	}
	taskQueue, err := a.buildQueue()
	if err != nil {
		a.close()
		return nil, err
	}

	// 6. Services
	a.svc = service.NewTransferService(cfg, sessions, chunks, artifacts, taskQueue, idGen)
	if a.localQueue != nil {
		a.localQueue.SetAssemblyHandler(a.svc.Assemble)
	} else {
		a.processor = worker.NewProcessor(a.svc.Assemble)
	}

	// 7. HTTP Server
	a.server = httpHandler.NewServer(cfg, a.svc, a.svc)

	return a, nil
}

func (a *App) buildStorage(ctx context.Context) (port.ChunkStore, port.ArtifactStore, error) {
	switch a.cfg.Storage.Driver {
	case "", "fs":
		chunks, err := fsstore.NewChunkStore(a.cfg.Storage.DataDir, a.cfg.Storage.FSync)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init chunk store: %w", err)
		}
		artifacts, err := fsstore.NewArtifactStore(a.cfg.Storage.DataDir, a.cfg.Storage.FSync)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init artifact store: %w", err)
		}
		return chunks, artifacts, nil
	case "s3":
		store, err := s3store.New(a.cfg.Storage.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init s3 storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure bucket: %w", err)
		}
		return store.Chunks(), store.Artifacts(), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
}

func (a *App) buildSessions(ctx context.Context, redisClient *redis.Client) (port.SessionRepository, error) {
	switch a.cfg.Sessions.Driver {
	case "", "memory":
		return memory.NewSessionRepository(), nil
	case "redis":
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		return redisstore.NewSessionRepository(redisClient, a.cfg.Sessions.Prefix), nil
	case "postgres":
		pool, err := postgres.Connect(ctx, a.cfg.Postgres.DSN, a.cfg.Postgres.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return postgres.NewSessionRepository(pool), nil
	default:
		return nil, fmt.Errorf("unknown session driver %q", a.cfg.Sessions.Driver)
	}
}

func (a *App) buildQueue() (port.TaskQueue, error) {
	switch a.cfg.Queue.Driver {
	case "", "local":
		a.localQueue = queue.NewLocalQueue(a.cfg.Queue.Concurrency, a.cfg.Queue.QueueSize)
		return a.localQueue, nil
	case "asynq":
		opt := asynq.RedisClientOpt{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		}
		client := asynq.NewClient(opt)
		inspector := asynq.NewInspector(opt)
		a.closers = append(a.closers, func() {
			_ = inspector.Close()
			_ = client.Close()
		})
		a.asynqServer = asynq.NewServer(opt, asynq.Config{
			Concurrency: a.cfg.Queue.Concurrency,
			Queues:      worker.Queues(),
		})
		return queue.NewAsynqQueue(client, inspector, a.cfg.Queue.ReadyQueue), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", a.cfg.Queue.Driver)
	}
}

func (a *App) Run() error {
	// Start assembly workers
	if a.asynqServer != nil {
		if err := a.asynqServer.Start(a.processor.Handler()); err != nil {
			a.close()
			return fmt.Errorf("failed to start asynq worker: %w", err)
		}
	}

	// Start Reaper
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		if a.cfg.Reaper.Enabled {
			a.svc.RunReaper(reaperCtx)
		}
	}()

	// Start HTTP
	logger.Infow("Transfer server starting",
		"addr", a.cfg.Server.Addr,
		"storage", a.cfg.Storage.Driver,
		"sessions", a.cfg.Sessions.Driver,
		"queue", a.cfg.Queue.Driver,
	)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("Transfer server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down transfer services")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Stop(ctx); err != nil {
		logger.Errorw("HTTP shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}

	stopReaper()
	<-reaperDone

	// Interrupted assemblies stay Assembling and are re-enqueued by the reaper.
	if a.localQueue != nil {
		a.localQueue.Stop()
	}
	if a.asynqServer != nil {
		a.asynqServer.Shutdown()
	}

	a.close()
	return runErr
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
