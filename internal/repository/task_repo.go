package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/model"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

type TaskRepo struct {
	pool  *pgxpool.Pool
	tasks *task.TaskRegistry
	infos *task.AdditionalInformationRegistry
}

func NewTaskRepo(pool *pgxpool.Pool, tasks *task.TaskRegistry, infos *task.AdditionalInformationRegistry) *TaskRepo {
	return &TaskRepo{pool: pool, tasks: tasks, infos: infos}
}

// Record 实现 task.Recorder。
// 已处于终态的行不会被覆盖，迁移乱序到达时终态保持不变。
func (r *TaskRepo) Record(ctx context.Context, t task.Task, d task.Details) error {
	taskJSON := r.encodeTask(t, d)
	infoJSON := r.encodeInfo(d)

	_, err := r.pool.Exec(ctx, `
insert into task_execution(task_id, type, status, task, additional_information, error,
                           submitted_at, started_at, completed_at, failed_at, cancelled_at)
values ($1,$2,$3,$4,$5,nullif($6,''),$7,$8,$9,$10,$11)
on conflict (task_id) do update
set status = excluded.status,
    task = coalesce(excluded.task, task_execution.task),
    additional_information = coalesce(excluded.additional_information, task_execution.additional_information),
    error = coalesce(excluded.error, task_execution.error),
    started_at = coalesce(excluded.started_at, task_execution.started_at),
    completed_at = coalesce(excluded.completed_at, task_execution.completed_at),
    failed_at = coalesce(excluded.failed_at, task_execution.failed_at),
    cancelled_at = coalesce(excluded.cancelled_at, task_execution.cancelled_at),
    updated_at = now()
where task_execution.status not in ('completed', 'failed', 'cancelled')
`, d.ID.String(), d.Type, string(d.Status), taskJSON, infoJSON, d.Error,
		d.SubmittedAt, d.StartedAt, d.CompletedAt, d.FailedAt, d.CancelledAt)
	if err != nil {
		return fmt.Errorf("record task %s: %w", d.ID, err)
	}
	return nil
}

// 序列化失败只记录日志，状态仍然落库
func (r *TaskRepo) encodeTask(t task.Task, d task.Details) []byte {
	if t == nil || r.tasks == nil {
		return nil
	}
	b, err := r.tasks.Serialize(t)
	if err != nil {
		logger.Warn().Err(err).Str("task_id", d.ID.String()).Str("task_type", d.Type).Msg("任务无法序列化")
		return nil
	}
	return b
}

func (r *TaskRepo) encodeInfo(d task.Details) []byte {
	if d.AdditionalInformation == nil || r.infos == nil {
		return nil
	}
	b, err := r.infos.Serialize(d.AdditionalInformation)
	if err != nil {
		logger.Warn().Err(err).Str("task_id", d.ID.String()).Str("task_type", d.Type).Msg("任务快照无法序列化")
		return nil
	}
	return b
}

const selectColumns = `task_id, type, status, task, additional_information, coalesce(error,''),
       submitted_at, started_at, completed_at, failed_at, cancelled_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec      Record
		status   string
		taskJSON []byte
		infoJSON []byte
	)
	err := row.Scan(&rec.TaskID, &rec.Type, &status, &taskJSON, &infoJSON, &rec.Error,
		&rec.SubmittedAt, &rec.StartedAt, &rec.CompletedAt, &rec.FailedAt, &rec.CancelledAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	rec.Status = model.TaskStatus(status)
	rec.Task = json.RawMessage(taskJSON)
	rec.AdditionalInformation = json.RawMessage(infoJSON)
	return rec, nil
}

func (r *TaskRepo) Get(ctx context.Context, taskID task.ID) (Record, error) {
	row := r.pool.QueryRow(ctx, `select `+selectColumns+` from task_execution where task_id=$1`, taskID.String())
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get task record: %w", err)
	}
	return rec, nil
}

func (r *TaskRepo) List(ctx context.Context, f ListFilter) ([]Record, error) {
	f = f.normalized()
	rows, err := r.pool.Query(ctx, `
select `+selectColumns+`
from task_execution
where ($1='' or status=$1)
  and ($2='' or type=$2)
order by submitted_at desc
limit $3 offset $4
`, string(f.Status), f.Type, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list task records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *TaskRepo) Count(ctx context.Context, f ListFilter) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
select count(*)
from task_execution
where ($1='' or status=$1)
  and ($2='' or type=$2)
`, string(f.Status), f.Type).Scan(&count)
	return count, err
}

var _ TaskRepository = (*TaskRepo)(nil)
