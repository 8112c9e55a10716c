package healthcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/metrics"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// AMQPProbe AMQP 连接是否可用
type AMQPProbe interface {
	Healthy() bool
}

// HealthChecker 健康检查器；未配置的依赖不参与检查
type HealthChecker struct {
	pgPool      *pgxpool.Pool
	redis       *redis.Client
	amqp        AMQPProbe
	deadLetters deadletter.Store
}

// Option 配置被检查的依赖
type Option func(*HealthChecker)

func WithPostgres(pool *pgxpool.Pool) Option { return func(h *HealthChecker) { h.pgPool = pool } }
func WithRedis(client *redis.Client) Option  { return func(h *HealthChecker) { h.redis = client } }
func WithAMQP(p AMQPProbe) Option            { return func(h *HealthChecker) { h.amqp = p } }

// WithDeadLetters 存在死信时就绪检查返回 degraded
func WithDeadLetters(s deadletter.Store) Option {
	return func(h *HealthChecker) { h.deadLetters = s }
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(opts ...Option) *HealthChecker {
	h := &HealthChecker{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CheckResult 健康检查结果
type CheckResult struct {
	Status  string            `json:"status"` // ok / degraded / error
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// LivenessCheck 存活检查（快速返回，不检查依赖）
func (h *HealthChecker) LivenessCheck() CheckResult {
	return CheckResult{
		Status: StatusOK,
		Checks: map[string]string{
			"service": "running",
		},
	}
}

// ReadinessCheck 就绪检查（检查所有依赖）
func (h *HealthChecker) ReadinessCheck(ctx context.Context) CheckResult {
	result := CheckResult{
		Status: StatusOK,
		Checks: make(map[string]string),
	}
	fail := func(name string, err error) {
		result.Checks[name] = "error: " + err.Error()
		result.Status = StatusError
	}

	if h.pgPool != nil {
		if err := h.checkPostgres(ctx); err != nil {
			fail("postgres", err)
		} else {
			result.Checks["postgres"] = StatusOK
		}
	}

	if h.redis != nil {
		if err := h.checkRedis(ctx); err != nil {
			fail("redis", err)
		} else {
			result.Checks["redis"] = StatusOK
		}
	}

	if h.amqp != nil {
		if !h.amqp.Healthy() {
			fail("amqp", fmt.Errorf("connection closed"))
		} else {
			result.Checks["amqp"] = StatusOK
		}
	}

	if h.deadLetters != nil {
		h.checkDeadLetters(ctx, &result)
	}

	return result
}

func (h *HealthChecker) checkDeadLetters(ctx context.Context, result *CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	has, err := h.deadLetters.ContainEvents(ctx)
	switch {
	case err != nil:
		result.Checks["dead_letters"] = "error: " + err.Error()
		result.Status = StatusError
	case has:
		result.Checks["dead_letters"] = "events awaiting redelivery"
		if result.Status == StatusOK {
			result.Status = StatusDegraded
		}
	default:
		result.Checks["dead_letters"] = StatusOK
	}
}

// checkPostgres 检查 PostgreSQL 连接
func (h *HealthChecker) checkPostgres(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	stat := h.pgPool.Stat()
	metrics.UpdateDBPoolStats(stat.AcquiredConns(), stat.IdleConns(), stat.MaxConns())
	return h.pgPool.Ping(ctx)
}

// checkRedis 检查 Redis 连接
func (h *HealthChecker) checkRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return h.redis.Ping(ctx).Err()
}
