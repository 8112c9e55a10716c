package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/healthcheck"
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/mailrepo"
	"github.com/azhengyongqin/mail-taskhub/internal/middleware"
	"github.com/azhengyongqin/mail-taskhub/internal/migration"
	"github.com/azhengyongqin/mail-taskhub/internal/reindex"
	"github.com/azhengyongqin/mail-taskhub/internal/repository"
	"github.com/azhengyongqin/mail-taskhub/internal/server/handler"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
	"github.com/azhengyongqin/mail-taskhub/internal/vault"
)

type Deps struct {
	Manager         *task.Manager
	Infos           *task.AdditionalInformationRegistry
	AwaitMaxTimeout time.Duration

	// 可选：若提供则查询会回退到 Postgres 中的任务记录
	TaskRepo repository.TaskRepository

	DeadLetters deadletter.Store
	Dispatcher  events.Dispatcher
	// 可选：为空时不开放 POST /events
	Publisher handler.Publisher

	Mailboxes  mailbox.Repository
	MailboxIDs mailbox.IDFactory
	Reindexer  *reindex.Performer

	Vault    vault.Vault
	Exporter vault.Exporter

	MailRepositories mailrepo.Repository
	MailQueue        mailrepo.MailQueue

	// 可选：未配置数据库时 /schema/upgrade 返回 503
	Migrator migration.Migrator

	// HealthChecker 健康检查器
	HealthChecker *healthcheck.HealthChecker
}

// NewRouter 任务状态查询与任务提交 API
func NewRouter(deps Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	// 邮件仓库路径以 %2F 编码出现在路径参数中
	r.UseRawPath = true
	r.UnescapePathValues = true

	// 全局中间件
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.PayloadSizeLimit(middleware.MaxPayloadSize))
	r.Use(middleware.CORSMiddleware())

	// 创建各个 handler 实例
	healthHandler := handler.NewHealthHandler(deps.HealthChecker)
	taskHandler := handler.NewTaskHandler(deps.Manager, deps.Infos, deps.TaskRepo, deps.AwaitMaxTimeout)
	deadLetterHandler := handler.NewDeadLetterHandler(deps.Manager, deps.DeadLetters, deps.Dispatcher)
	mailboxHandler := handler.NewMailboxHandler(deps.Manager, deps.Reindexer, deps.Mailboxes, deps.MailboxIDs, taskHandler.Information)
	vaultHandler := handler.NewVaultHandler(deps.Manager, deps.Vault, deps.Mailboxes, deps.Exporter)
	mailRepoHandler := handler.NewMailRepositoryHandler(deps.Manager, deps.MailRepositories, deps.MailQueue)
	schemaHandler := handler.NewSchemaHandler(deps.Manager, deps.Migrator)

	// 健康检查路由
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	// Prometheus metrics 端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	taskID := middleware.ValidateTaskIDParam()
	group := middleware.ValidateGroupParam()
	insertionID := middleware.ValidateInsertionIDParam()

	api := r.Group("/api/v1")
	{
		// 任务
		api.GET("/tasks", taskHandler.ListTasks)
		api.GET("/tasks/:task_id", taskID, taskHandler.GetTask)
		api.GET("/tasks/:task_id/await", taskID, taskHandler.AwaitTask)
		api.DELETE("/tasks/:task_id", taskID, taskHandler.CancelTask)

		// 事件与死信
		if deps.Publisher != nil {
			api.POST("/events", handler.NewEventHandler(deps.Publisher).Publish)
		}
		api.POST("/events/deadLetter", deadLetterHandler.RedeliverAll)
		api.GET("/events/deadLetter/groups", deadLetterHandler.ListGroups)
		api.GET("/events/deadLetter/groups/:group", group, deadLetterHandler.ListInsertionIDs)
		api.POST("/events/deadLetter/groups/:group", group, deadLetterHandler.RedeliverGroup)
		api.GET("/events/deadLetter/groups/:group/:insertion_id", group, insertionID, deadLetterHandler.GetEvent)
		api.DELETE("/events/deadLetter/groups/:group/:insertion_id", group, insertionID, deadLetterHandler.DeleteEvent)
		api.POST("/events/deadLetter/groups/:group/:insertion_id", group, insertionID, deadLetterHandler.RedeliverOne)

		// 重建索引与合并
		api.POST("/mailboxes", mailboxHandler.ReIndex)
		api.POST("/mailboxes/merging", mailboxHandler.Merge)
		api.POST("/mailboxes/:mailbox_id", mailboxHandler.ReIndexMailbox)
		api.POST("/mailboxes/:mailbox_id/mails/:uid", mailboxHandler.ReIndexMessage)
		api.POST("/messages/:message_id", mailboxHandler.ReIndexMessageID)

		// 已删除邮件保险库
		api.POST("/deletedMessages/users/:user", vaultHandler.Submit)

		// 邮件仓库
		api.PATCH("/mailRepositories/:repository/mails", mailRepoHandler.ReprocessAll)
		api.PATCH("/mailRepositories/:repository/mails/:mail_key", mailRepoHandler.ReprocessOne)
		api.DELETE("/mailRepositories/:repository/mails", mailRepoHandler.Clear)

		// 数据库结构
		api.POST("/schema/upgrade", schemaHandler.Upgrade)
	}

	return r
}
