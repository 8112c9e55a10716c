package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	_ "github.com/azhengyongqin/mail-taskhub/docs" // Swagger docs
	"github.com/azhengyongqin/mail-taskhub/internal/app"
	"github.com/azhengyongqin/mail-taskhub/internal/config"
	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/eventbus"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/healthcheck"
	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/mailrepo"
	asynqx "github.com/azhengyongqin/mail-taskhub/internal/queue"
	"github.com/azhengyongqin/mail-taskhub/internal/reindex"
	"github.com/azhengyongqin/mail-taskhub/internal/repository"
	"github.com/azhengyongqin/mail-taskhub/internal/search"
	httpserver "github.com/azhengyongqin/mail-taskhub/internal/server"
	"github.com/azhengyongqin/mail-taskhub/internal/storage/postgres"
	"github.com/azhengyongqin/mail-taskhub/internal/storage/redisx"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
	"github.com/azhengyongqin/mail-taskhub/internal/vault"
)

// @title Mail TaskHub API
// @version 1.0.0
// @description 邮件服务器控制面：任务管理、死信重投、重建索引、邮箱合并、已删除邮件恢复与导出、邮件仓库重新处理
// @license.name MIT
// @BasePath /api/v1
// @schemes http https
// @host localhost:28080

// 说明：
// - 单进程同时承载 HTTP API、任务管理器以及（按配置）asynq / AMQP 消费端。
// - 未配置 Postgres 时任务只保存在内存中，/schema/upgrade 返回 503。

// infra 启动阶段打开的外部连接，按打开的逆序关闭
type infra struct {
	redis   *redis.Client
	pool    *pgxpool.Pool
	gorm    *postgres.DB
	migr    *postgres.Migrator
	amqp    *eventbus.AMQPDispatcher
	closers []io.Closer
}

func (i *infra) close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j].Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭连接失败")
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		// 配置加载失败时日志尚未按配置初始化，使用开发模式输出
		_ = logger.Init(false)
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	// 初始化结构化日志
	if err := logger.Init(cfg.Log.Production); err != nil {
		logger.Fatal().Err(err).Msg("初始化日志失败")
	}
	logger.SetLevel(cfg.Log.Level)

	logger.Info().
		Str("http", cfg.HTTP.Addr).
		Str("deadletter_backend", cfg.DeadLetter.Backend).
		Str("dispatch_backend", cfg.Dispatch.Backend).
		Bool("postgres", cfg.Postgres.DSN != "").
		Msg("服务启动")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inf, err := openInfra(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化外部依赖失败")
	}
	defer inf.close()

	// 死信存储
	deadLetters := newDeadLetterStore(cfg, inf)

	// 事件总线：vault 监听删除事件，监听失败写入死信
	bus := eventbus.NewBus(deadLetters)
	memVault := vault.NewMemoryVault()
	if err := bus.Register(vault.ListenerGroup, vault.Listener(memVault)); err != nil {
		logger.Fatal().Err(err).Msg("注册事件监听器失败")
	}

	// 邮箱与检索索引
	mailboxIDs := &mailbox.NumericIDFactory{}
	mailboxes := mailbox.NewMemoryRepository(mailboxIDs)
	indexer, err := search.NewIndexer(cfg.Storage.IndexPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("打开检索索引失败")
	}
	inf.closers = append(inf.closers, indexer)

	// 邮件仓库与重新处理队列
	mailRepos := mailrepo.NewMemoryRepository()
	var mailQueue mailrepo.MailQueue = mailrepo.NewSpoolQueue(mailRepos)

	var (
		dispatcher events.Dispatcher = bus
		asynqSrv   *asynq.Server
	)
	if cfg.Redis.URL != "" {
		client, err := asynqx.NewClient(cfg.Redis.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("创建 asynq client 失败")
		}
		inf.closers = append(inf.closers, client)
		mailQueue = mailrepo.NewAsynqMailQueue(client)
		if cfg.Dispatch.Backend == config.DispatchAsynq {
			dispatcher = eventbus.NewAsynqDispatcher(client)
		}

		asynqSrv, err = startAsynqServer(cfg, bus, mailRepos)
		if err != nil {
			logger.Fatal().Err(err).Msg("启动 asynq 消费端失败")
		}
	}
	if inf.amqp != nil {
		for _, g := range bus.Groups() {
			if err := inf.amqp.Consume(ctx, g, bus); err != nil {
				logger.Fatal().Err(err).Str("group", g.String()).Msg("订阅 AMQP 队列失败")
			}
		}
		dispatcher = inf.amqp
	}

	components := app.Components{
		DeadLetters:      deadLetters,
		Dispatcher:       dispatcher,
		Mailboxes:        mailboxes,
		MailboxIDs:       mailboxIDs,
		Reindexer:        reindex.NewPerformer(mailboxes, indexer),
		Vault:            memVault,
		Exporter:         vault.NewZipExporter(cfg.Storage.ExportDir),
		MailRepositories: mailRepos,
		MailQueue:        mailQueue,
	}
	if inf.migr != nil {
		components.Migrator = inf.migr
	}
	tasks, infos, err := app.Registries(components)
	if err != nil {
		logger.Fatal().Err(err).Msg("注册任务类型失败")
	}

	// 任务管理器；配置了 Postgres 时每次状态变化写入 task_execution
	managerOpts := []task.Option{task.WithWorkers(cfg.Task.Workers)}
	var taskRepo repository.TaskRepository
	if inf.pool != nil {
		taskRepo = repository.NewCachedTaskRepo(
			repository.NewTaskRepo(inf.pool, tasks, infos),
			cfg.Task.RecordCacheSize,
			time.Hour,
		)
		managerOpts = append(managerOpts, task.WithRecorder(taskRepo))
	}
	manager := task.NewManager(managerOpts...)

	// 创建健康检查器
	healthChecker := healthcheck.NewHealthChecker(healthCheckOptions(inf, deadLetters)...)

	deps := httpserver.Deps{
		Manager:          manager,
		Infos:            infos,
		AwaitMaxTimeout:  cfg.Task.AwaitMaxTimeout,
		TaskRepo:         taskRepo,
		DeadLetters:      deadLetters,
		Dispatcher:       dispatcher,
		Publisher:        bus,
		Mailboxes:        mailboxes,
		MailboxIDs:       mailboxIDs,
		Reindexer:        components.Reindexer,
		Vault:            memVault,
		Exporter:         components.Exporter,
		MailRepositories: mailRepos,
		MailQueue:        mailQueue,
		HealthChecker:    healthChecker,
	}
	if inf.migr != nil {
		deps.Migrator = inf.migr
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpserver.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP 服务监听")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP 服务错误")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(shutdownCtx)
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("任务管理器未能在超时前退出")
	}
	if asynqSrv != nil {
		asynqSrv.Shutdown()
	}
	logger.Info().Msg("服务已优雅关闭")
}

// openInfra 只打开配置中出现的依赖
func openInfra(ctx context.Context, cfg *config.Config) (*infra, error) {
	inf := &infra{}

	if cfg.Redis.URL != "" {
		client, err := redisx.Open(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		inf.redis = client
		inf.closers = append(inf.closers, client)
	}

	if cfg.Postgres.DSN != "" {
		if err := openPostgres(ctx, cfg, inf); err != nil {
			inf.close()
			return nil, err
		}
	}

	if cfg.Dispatch.Backend == config.DispatchAMQP {
		d, err := eventbus.DialAMQP(ctx, cfg.AMQP.URL)
		if err != nil {
			inf.close()
			return nil, err
		}
		inf.amqp = d
		inf.closers = append(inf.closers, d)
	}
	return inf, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, inf *infra) error {
	sqlDB, err := postgres.OpenStdlib(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	inf.closers = append(inf.closers, sqlDB)

	migr, err := postgres.NewMigrator(sqlDB, nil)
	if err != nil {
		return err
	}
	inf.migr = migr
	if cfg.Postgres.MigrationsAuto {
		if err := migr.Up(ctx); err != nil {
			return err
		}
	}

	poolCfg := postgres.PoolConfig{
		MaxConns:          cfg.DBPool.MaxConns,
		MinConns:          cfg.DBPool.MinConns,
		MaxConnLifetime:   cfg.DBPool.MaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPool.MaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPool.HealthCheckPeriod,
	}
	pool, err := postgres.OpenPool(ctx, cfg.Postgres.DSN, poolCfg)
	if err != nil {
		return err
	}
	inf.pool = pool
	inf.closers = append(inf.closers, closerFunc(func() error { pool.Close(); return nil }))

	if cfg.DeadLetter.Backend == config.BackendPostgres {
		db, err := postgres.OpenGorm(ctx, cfg.Postgres.DSN, poolCfg)
		if err != nil {
			return err
		}
		inf.gorm = db
		inf.closers = append(inf.closers, db)
	}
	return nil
}

func newDeadLetterStore(cfg *config.Config, inf *infra) deadletter.Store {
	switch cfg.DeadLetter.Backend {
	case config.BackendRedis:
		return deadletter.NewRedisStore(inf.redis, "")
	case config.BackendPostgres:
		return deadletter.NewPostgresStore(inf.gorm.DB)
	default:
		return deadletter.NewMemoryStore()
	}
}

// startAsynqServer 消费事件队列（重投）与邮件队列（重新处理）
func startAsynqServer(cfg *config.Config, bus *eventbus.Bus, spool mailrepo.Repository) (*asynq.Server, error) {
	redisOpt, err := asynqx.NewRedisConnOpt(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	queues := eventbus.QueuesFor(bus.Groups())
	queues[asynqx.MailQueue(mailrepo.DefaultQueue)] = 2

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Task.Workers,
		Queues:      queues,
	})

	mux := eventbus.NewEventMux(bus)
	mux.Handle(asynqx.TypeMail, mailrepo.MailHandler(func(ctx context.Context, m mailrepo.Mail) error {
		queue, _ := asynq.GetQueueName(ctx)
		name, _ := asynqx.QueueOfMail(queue)
		return spool.Store(ctx, mailrepo.SpoolPath(name), m)
	}))

	if err := srv.Start(mux); err != nil {
		return nil, err
	}
	return srv, nil
}

func healthCheckOptions(inf *infra, deadLetters deadletter.Store) []healthcheck.Option {
	opts := []healthcheck.Option{healthcheck.WithDeadLetters(deadLetters)}
	if inf.pool != nil {
		opts = append(opts, healthcheck.WithPostgres(inf.pool))
	}
	if inf.redis != nil {
		opts = append(opts, healthcheck.WithRedis(inf.redis))
	}
	if inf.amqp != nil {
		opts = append(opts, healthcheck.WithAMQP(inf.amqp))
	}
	return opts
}
