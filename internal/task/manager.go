package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/metrics"
	"github.com/azhengyongqin/mail-taskhub/internal/model"
)

// DefaultWorkers 默认并发执行的任务数
const DefaultWorkers = 4

const recordTimeout = 5 * time.Second

// Option Manager 配置项
type Option func(*Manager)

// WithWorkers 设置 worker 数量（同时处于 in-progress 的任务上限）
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithRecorder 设置状态迁移记录器
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithClock 替换时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager 内存任务管理器：固定数量的 worker 消费无界 FIFO 等待队列。
type Manager struct {
	workers  int
	recorder Recorder
	now      func() time.Time

	mu      sync.RWMutex
	entries map[ID]*execution
	order   []ID

	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     []*execution
	closed    bool

	wg sync.WaitGroup
}

// NewManager 创建并启动任务管理器
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		workers: DefaultWorkers,
		now:     time.Now,
		entries: map[ID]*execution{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.queueCond = sync.NewCond(&m.queueMu)

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Submit 登记任务为 waiting 并排队，立即返回
func (m *Manager) Submit(t Task) (ID, error) {
	if t == nil {
		return "", errors.New("nil task")
	}

	m.queueMu.Lock()
	closed := m.closed
	m.queueMu.Unlock()
	if closed {
		return "", ErrManagerClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &execution{
		task:   t,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		details: Details{
			ID:          NewID(),
			Type:        t.Type(),
			Status:      model.TaskStatusWaiting,
			SubmittedAt: m.now(),
		},
	}
	id := e.details.ID

	m.mu.Lock()
	m.entries[id] = e
	m.order = append(m.order, id)
	m.mu.Unlock()

	metrics.RecordTaskSubmitted(t.Type())
	m.record(e, e.snapshot())

	m.queueMu.Lock()
	if m.closed {
		m.queueMu.Unlock()
		m.cancelWaiting(e)
		return id, nil
	}
	m.queue = append(m.queue, e)
	m.queueCond.Signal()
	m.queueMu.Unlock()

	logger.WithTask(id.String(), t.Type()).Info().Msg("任务已提交")
	return id, nil
}

// Get 返回任务当前详情
func (m *Manager) Get(id ID) (Details, error) {
	e, ok := m.lookup(id)
	if !ok {
		return Details{}, ErrTaskNotFound
	}
	return e.snapshot(), nil
}

// List 按提交顺序返回全部任务详情
func (m *Manager) List() []Details {
	m.mu.RLock()
	execs := make([]*execution, 0, len(m.order))
	for _, id := range m.order {
		execs = append(execs, m.entries[id])
	}
	m.mu.RUnlock()

	out := make([]Details, 0, len(execs))
	for _, e := range execs {
		out = append(out, e.snapshot())
	}
	return out
}

// ListByStatus 按提交顺序返回指定状态的任务
func (m *Manager) ListByStatus(status model.TaskStatus) []Details {
	all := m.List()
	out := make([]Details, 0, len(all))
	for _, d := range all {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out
}

// GetAdditionalInformation 返回最近一次发布的快照；任务从未发布时返回 nil
func (m *Manager) GetAdditionalInformation(id ID) (AdditionalInformation, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	return e.latest(), nil
}

// Await 阻塞直到任务进入终态、超时或 ctx 结束。timeout <= 0 表示只受 ctx 约束。
// 超时返回当前详情与 ErrAwaitTimeout。
func (m *Manager) Await(ctx context.Context, id ID, timeout time.Duration) (Details, error) {
	e, ok := m.lookup(id)
	if !ok {
		return Details{}, ErrTaskNotFound
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-e.done:
		return e.snapshot(), nil
	case <-expired:
		return e.snapshot(), ErrAwaitTimeout
	case <-ctx.Done():
		return e.snapshot(), ctx.Err()
	}
}

// Cancel 请求取消。waiting 任务直接进入 cancelled；
// in-progress 任务只会看到 ctx 失效，是否退出由任务自己决定；终态任务忽略。
func (m *Manager) Cancel(id ID) error {
	e, ok := m.lookup(id)
	if !ok {
		return ErrTaskNotFound
	}

	e.cancelRequested.Store(true)
	if m.cancelWaiting(e) {
		return nil
	}
	e.cancel()
	logger.WithTask(id.String(), e.task.Type()).Info().Msg("已请求取消任务")
	return nil
}

// Shutdown 停止接收新任务，取消排队任务，请求取消执行中的任务并等待 worker 退出
func (m *Manager) Shutdown(ctx context.Context) error {
	m.queueMu.Lock()
	if m.closed {
		m.queueMu.Unlock()
		return nil
	}
	m.closed = true
	pending := m.queue
	m.queue = nil
	m.queueCond.Broadcast()
	m.queueMu.Unlock()

	for _, e := range pending {
		e.cancelRequested.Store(true)
		m.cancelWaiting(e)
	}

	m.mu.RLock()
	for _, e := range m.entries {
		e.cancelRequested.Store(true)
		e.cancel()
	}
	m.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(id ID) (*execution, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *Manager) cancelWaiting(e *execution) bool {
	d, ok := e.moveFrom(model.TaskStatusWaiting, model.TaskStatusCancelled, m.now(), "")
	if !ok {
		return false
	}
	metrics.RecordTaskCancelledWhileWaiting(d.Type)
	m.record(e, d)
	logger.WithTask(d.ID.String(), d.Type).Info().Msg("排队中的任务已取消")
	return true
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		e, ok := m.next()
		if !ok {
			return
		}
		m.execute(e)
	}
}

func (m *Manager) next() (*execution, bool) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	for len(m.queue) == 0 && !m.closed {
		m.queueCond.Wait()
	}
	if len(m.queue) == 0 {
		return nil, false
	}
	e := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return e, true
}

func (m *Manager) execute(e *execution) {
	d, ok := e.moveFrom(model.TaskStatusWaiting, model.TaskStatusInProgress, m.now(), "")
	if !ok {
		return
	}
	metrics.RecordTaskStarted()
	m.record(e, d)

	log := logger.WithTask(d.ID.String(), d.Type)
	log.Info().Msg("任务开始执行")

	start := time.Now()
	status, diagnostic := m.run(e, log)

	d, ok = e.move(status, m.now(), diagnostic)
	if !ok {
		return
	}
	metrics.RecordTaskFinished(d.Type, string(status), time.Since(start).Seconds())
	m.record(e, d)

	ev := log.Info()
	if status == model.TaskStatusFailed {
		ev = log.Warn().Str("errors", diagnostic)
	}
	ev.Str("status", string(status)).Dur("duration(ms)", time.Since(start)).Msg("任务结束")
}

func (m *Manager) run(e *execution, log *zerolog.Logger) (status model.TaskStatus, diagnostic string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err, ok := recovered.(error)
			if ok {
				err = errors.WithStack(err)
			} else {
				err = errors.Errorf("%v", recovered)
			}
			log.Error().Str("stack", fmt.Sprintf("%+v", err)).Msg("任务 panic")
			status = model.TaskStatusFailed
			diagnostic = fmt.Sprintf("panic: %+v", err)
		}
	}()

	result, err := e.task.Run(e.ctx, e)
	switch {
	case err != nil && e.cancelRequested.Load() && errors.Is(err, context.Canceled):
		return model.TaskStatusCancelled, ""
	case err != nil:
		return model.TaskStatusFailed, err.Error()
	case result == ResultPartial:
		return model.TaskStatusFailed, ErrPartialFailure.Error()
	default:
		return model.TaskStatusCompleted, ""
	}
}

func (m *Manager) record(e *execution, d Details) {
	if m.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := m.recorder.Record(ctx, e.task, d); err != nil {
		metrics.RecordError("task_recorder", "record")
		logger.WithTask(d.ID.String(), d.Type).Warn().Err(err).Str("status", string(d.Status)).Msg("记录任务状态失败")
	}
}

// execution 单个任务的运行时状态
type execution struct {
	task            Task
	ctx             context.Context
	cancel          context.CancelFunc
	cancelRequested atomic.Bool

	mu      sync.Mutex
	details Details

	info atomic.Pointer[infoSlot]
	done chan struct{}
}

type infoSlot struct {
	info AdditionalInformation
}

// Publish 实现 Progress：整体替换快照槽位
func (e *execution) Publish(info AdditionalInformation) {
	if info == nil {
		return
	}
	e.info.Store(&infoSlot{info: info})
}

func (e *execution) latest() AdditionalInformation {
	if slot := e.info.Load(); slot != nil {
		return slot.info
	}
	return nil
}

func (e *execution) snapshot() Details {
	e.mu.Lock()
	d := e.details
	e.mu.Unlock()
	d.AdditionalInformation = e.latest()
	return d
}

func (e *execution) move(next model.TaskStatus, at time.Time, diagnostic string) (Details, bool) {
	return e.transition(nil, next, at, diagnostic)
}

func (e *execution) moveFrom(from, next model.TaskStatus, at time.Time, diagnostic string) (Details, bool) {
	return e.transition(&from, next, at, diagnostic)
}

func (e *execution) transition(from *model.TaskStatus, next model.TaskStatus, at time.Time, diagnostic string) (Details, bool) {
	e.mu.Lock()
	current := e.details.Status
	if (from != nil && current != *from) || !current.CanTransitionTo(next) {
		e.mu.Unlock()
		return Details{}, false
	}

	e.details.Status = next
	switch next {
	case model.TaskStatusInProgress:
		e.details.StartedAt = &at
	case model.TaskStatusCompleted:
		e.details.CompletedAt = &at
	case model.TaskStatusFailed:
		e.details.FailedAt = &at
	case model.TaskStatusCancelled:
		e.details.CancelledAt = &at
	}
	if diagnostic != "" {
		e.details.Error = diagnostic
	}
	d := e.details
	e.mu.Unlock()

	if next.IsTerminal() {
		e.cancel()
		close(e.done)
	}
	d.AdditionalInformation = e.latest()
	return d, true
}
