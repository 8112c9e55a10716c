package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/merging"
	"github.com/azhengyongqin/mail-taskhub/internal/model"
	"github.com/azhengyongqin/mail-taskhub/internal/storage/postgres"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

func registries(t *testing.T) (*task.TaskRegistry, *task.AdditionalInformationRegistry, mailbox.Repository) {
	t.Helper()
	tasks := task.NewTaskRegistry()
	infos := task.NewAdditionalInformationRegistry()
	repo := mailbox.NewMemoryRepository(&mailbox.NumericIDFactory{})
	require.NoError(t, merging.Register(tasks, infos, repo, &mailbox.NumericIDFactory{}))
	return tasks, infos, repo
}

func TestRecord_Decode(t *testing.T) {
	_, infos, _ := registries(t)
	submitted := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	done := submitted.Add(time.Minute)

	rec := Record{
		TaskID:                "2c7f4081-aa30-11e9-bf6c-2d3b9e84aa7f",
		Type:                  merging.TaskType,
		Status:                model.TaskStatusCompleted,
		AdditionalInformation: []byte(`{"type":"mailboxMerging","oldMailboxId":"1","newMailboxId":"2","totalMessageCount":3,"messageMovedCount":3,"messageFailedCount":0}`),
		SubmittedAt:           submitted,
		CompletedAt:           &done,
	}
	d, err := rec.Decode(infos)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, d.Status)
	assert.Equal(t, &done, d.CompletedAt)
	info := d.AdditionalInformation.(*merging.AdditionalInformation)
	assert.EqualValues(t, 3, info.MessageMovedCount)

	rec.AdditionalInformation = nil
	d, err = rec.Decode(infos)
	require.NoError(t, err)
	assert.Nil(t, d.AdditionalInformation)

	rec.AdditionalInformation = []byte(`{"type":"unknown"}`)
	_, err = rec.Decode(infos)
	assert.Error(t, err)

	rec.TaskID = "not-a-uuid"
	_, err = rec.Decode(infos)
	assert.Error(t, err)
}

func TestListFilter_Normalized(t *testing.T) {
	assert.Equal(t, 50, ListFilter{}.normalized().Limit)
	assert.Equal(t, 50, ListFilter{Limit: 1000}.normalized().Limit)
	assert.Equal(t, 0, ListFilter{Offset: -3}.normalized().Offset)
	assert.Equal(t, 10, ListFilter{Limit: 10}.normalized().Limit)
}

type countingRepo struct {
	records map[task.ID]Record
	gets    int
}

func (c *countingRepo) Record(_ context.Context, _ task.Task, d task.Details) error {
	c.records[d.ID] = Record{TaskID: d.ID.String(), Status: d.Status}
	return nil
}

func (c *countingRepo) Get(_ context.Context, id task.ID) (Record, error) {
	c.gets++
	rec, ok := c.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (c *countingRepo) List(context.Context, ListFilter) ([]Record, error) { return nil, nil }
func (c *countingRepo) Count(context.Context, ListFilter) (int, error)     { return len(c.records), nil }

func TestCachedTaskRepo_CachesOnlyTerminalRecords(t *testing.T) {
	ctx := context.Background()
	backend := &countingRepo{records: map[task.ID]Record{}}
	repo := NewCachedTaskRepo(backend, 8, time.Minute)
	id := task.NewID()

	require.NoError(t, repo.Record(ctx, nil, task.Details{ID: id, Status: model.TaskStatusInProgress}))
	_, err := repo.Get(ctx, id)
	require.NoError(t, err)
	_, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.gets)

	require.NoError(t, repo.Record(ctx, nil, task.Details{ID: id, Status: model.TaskStatusCompleted}))
	for range 3 {
		rec, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.TaskStatusCompleted, rec.Status)
	}
	assert.Equal(t, 3, backend.gets)

	_, err = repo.Get(ctx, task.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepo_Postgres(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN 未设置，跳过 Postgres 集成测试")
	}
	ctx := context.Background()

	sqlDB, err := postgres.OpenStdlib(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	migrator, err := postgres.NewMigrator(sqlDB, nil)
	require.NoError(t, err)
	require.NoError(t, migrator.Up(ctx))

	pool, err := postgres.OpenPool(ctx, dsn, postgres.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	tasks, infos, mbxRepo := registries(t)
	repo := NewTaskRepo(pool, tasks, infos)
	tk := merging.NewTask(mbxRepo, "1", "2")

	id := task.NewID()
	now := time.Now().UTC().Truncate(time.Millisecond)
	base := task.Details{ID: id, Type: merging.TaskType, SubmittedAt: now}

	waiting := base
	waiting.Status = model.TaskStatusWaiting
	require.NoError(t, repo.Record(ctx, tk, waiting))

	completed := base
	completed.Status = model.TaskStatusCompleted
	completed.CompletedAt = &now
	completed.AdditionalInformation = &merging.AdditionalInformation{OldMailboxID: "1", NewMailboxID: "2"}
	require.NoError(t, repo.Record(ctx, tk, completed))

	// 迟到的 in-progress 不能覆盖终态
	late := base
	late.Status = model.TaskStatusInProgress
	late.StartedAt = &now
	require.NoError(t, repo.Record(ctx, tk, late))

	rec, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, rec.Status)
	assert.JSONEq(t, `{"type":"mailboxMerging","oldMailboxId":"1","newMailboxId":"2"}`, string(rec.Task))

	d, err := rec.Decode(infos)
	require.NoError(t, err)
	assert.IsType(t, &merging.AdditionalInformation{}, d.AdditionalInformation)

	list, err := repo.List(ctx, ListFilter{Status: model.TaskStatusCompleted, Type: merging.TaskType})
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	_, err = repo.Get(ctx, task.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}
