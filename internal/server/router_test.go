package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/azhengyongqin/mail-taskhub/docs"
	"github.com/azhengyongqin/mail-taskhub/internal/app"
	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/eventbus"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/healthcheck"
	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/mailrepo"
	"github.com/azhengyongqin/mail-taskhub/internal/reindex"
	"github.com/azhengyongqin/mail-taskhub/internal/repository"
	"github.com/azhengyongqin/mail-taskhub/internal/search"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
	"github.com/azhengyongqin/mail-taskhub/internal/vault"
)

type nopMailQueue struct{}

func (nopMailQueue) Enqueue(context.Context, string, mailrepo.Mail) error { return nil }

type fixture struct {
	handler   http.Handler
	store     *deadletter.MemoryStore
	bus       *eventbus.Bus
	mailboxes *mailbox.MemoryRepository
	mailRepos *mailrepo.MemoryRepository
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := deadletter.NewMemoryStore()
	bus := eventbus.NewBus(store)
	ids := &mailbox.NumericIDFactory{}
	mailRepos := mailrepo.NewMemoryRepository()
	mailboxes := mailbox.NewMemoryRepository(ids)
	idx, err := search.NewMemIndexer()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	c := app.Components{
		DeadLetters:      store,
		Dispatcher:       bus,
		Mailboxes:        mailboxes,
		MailboxIDs:       ids,
		Reindexer:        reindex.NewPerformer(mailboxes, idx),
		Vault:            vault.NewMemoryVault(),
		Exporter:         vault.NewZipExporter(t.TempDir()),
		MailRepositories: mailRepos,
		MailQueue:        nopMailQueue{},
	}
	_, infos, err := app.Registries(c)
	require.NoError(t, err)

	manager := task.NewManager(task.WithWorkers(2))
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	deps := Deps{
		Manager:          manager,
		Infos:            infos,
		AwaitMaxTimeout:  10 * time.Second,
		DeadLetters:      store,
		Dispatcher:       bus,
		Publisher:        bus,
		Mailboxes:        mailboxes,
		MailboxIDs:       ids,
		Reindexer:        c.Reindexer,
		Vault:            c.Vault,
		Exporter:         c.Exporter,
		MailRepositories: c.MailRepositories,
		MailQueue:        c.MailQueue,
		HealthChecker:    healthcheck.NewHealthChecker(healthcheck.WithDeadLetters(store)),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h := NewRouter(deps)
	return &fixture{handler: h, store: store, bus: bus, mailboxes: mailboxes, mailRepos: mailRepos}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) submit(t *testing.T, method, path, body string) string {
	t.Helper()
	w := f.do(t, method, path, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		TaskID string `json:"taskId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TaskID)
	return resp.TaskID
}

func (f *fixture) await(t *testing.T, id string) map[string]any {
	t.Helper()
	w := f.do(t, http.MethodGet, "/api/v1/tasks/"+id+"/await?timeout=5s", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRedeliverAll_FailingListenerKeepsEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := events.Group("failing")
	require.NoError(t, f.bus.Register(group, events.ListenerFunc(func(context.Context, events.Event) error {
		return assert.AnError
	})))
	_, err := f.store.Store(ctx, group, events.Event(`{"n":1}`))
	require.NoError(t, err)
	_, err = f.store.Store(ctx, group, events.Event(`{"n":2}`))
	require.NoError(t, err)

	id := f.submit(t, http.MethodPost, "/api/v1/events/deadLetter?action=reDeliver", "")
	out := f.await(t, id)

	assert.Equal(t, "failed", out["status"])
	assert.Equal(t, id, out["taskId"])
	assert.Equal(t, "eventDeadLettersRedeliverTask", out["type"])
	assert.NotEmpty(t, out["submitDate"])
	assert.NotEmpty(t, out["failedDate"])
	info := out["additionalInformation"].(map[string]any)
	assert.Equal(t, "eventDeadLettersRedeliverTask", info["type"])
	assert.EqualValues(t, 0, info["successfulRedeliveriesCount"])
	assert.EqualValues(t, 2, info["failedRedeliveriesCount"])

	ids, err := deadletter.CollectInsertionIDs(ctx, f.store, group)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestRedeliver_RequiresAction(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/events/deadLetter", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/events/deadLetter?action=delete", "").Code)
}

func TestDeadLetterRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.store.Store(ctx, "mailbox-listener", events.Event(`{"kind":"added"}`))
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/v1/events/deadLetter/groups", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["mailbox-listener"]`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/v1/events/deadLetter/groups/mailbox-listener", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["`+id.String()+`"]`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/v1/events/deadLetter/groups/mailbox-listener/"+id.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"kind":"added"}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/events/deadLetter/groups/mailbox-listener/nope", "").Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodGet, "/api/v1/events/deadLetter/groups/mailbox-listener/"+deadletter.NewInsertionID().String(), "").Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodPost, "/api/v1/events/deadLetter/groups/mailbox-listener/"+deadletter.NewInsertionID().String()+"?action=reDeliver", "").Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/events/deadLetter/groups/mailbox-listener/"+id.String(), "").Code)
	has, err := f.store.ContainEvents(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestTaskRoutes_Validation(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/tasks/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/tasks/"+task.NewID().String(), "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/v1/tasks/"+task.NewID().String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/tasks?status=bogus", "").Code)
}

func TestFullReIndex_ThenListByStatus(t *testing.T) {
	f := newFixture(t)
	id := f.submit(t, http.MethodPost, "/api/v1/mailboxes?task=reIndex", "")
	out := f.await(t, id)
	assert.Equal(t, "completed", out["status"])
	info := out["additionalInformation"].(map[string]any)
	assert.EqualValues(t, 0, info["successfullyReprocessedMailCount"])
	assert.Equal(t, []any{}, info["failures"])

	w := f.do(t, http.MethodGet, "/api/v1/tasks?status=completed", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0]["taskId"])
}

func TestReIndexFailedMessagesOf(t *testing.T) {
	f := newFixture(t)
	reindexID := f.submit(t, http.MethodPost, "/api/v1/mailboxes?task=reIndex", "")
	f.await(t, reindexID)

	recoveryID := f.submit(t, http.MethodPost, "/api/v1/mailboxes?task=reIndex&reIndexFailedMessagesOf="+reindexID, "")
	out := f.await(t, recoveryID)
	assert.Equal(t, "ErrorRecoveryIndexation", out["type"])

	redeliverID := f.submit(t, http.MethodPost, "/api/v1/events/deadLetter?action=reDeliver", "")
	f.await(t, redeliverID)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/v1/mailboxes?task=reIndex&reIndexFailedMessagesOf="+redeliverID, "").Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/v1/mailboxes?task=reIndex&reIndexFailedMessagesOf="+task.NewID().String(), "").Code)
}

func TestReIndexMessage_MissingMessageFails(t *testing.T) {
	f := newFixture(t)
	mbx, err := f.mailboxes.CreateMailbox(context.Background(), "bob", "INBOX")
	require.NoError(t, err)

	id := f.submit(t, http.MethodPost, "/api/v1/mailboxes/"+mbx.ID.String()+"/mails/7?task=reIndex", "")
	assert.Equal(t, "failed", f.await(t, id)["status"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/mailboxes/"+mbx.ID.String()+"/mails/0?task=reIndex", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/mailboxes/"+mbx.ID.String()+"?task=other", "").Code)
}

func TestMergeMailboxes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	origin, err := f.mailboxes.CreateMailbox(ctx, "bob", "Old")
	require.NoError(t, err)
	dest, err := f.mailboxes.CreateMailbox(ctx, "bob", "New")
	require.NoError(t, err)

	id := f.submit(t, http.MethodPost, "/api/v1/mailboxes/merging",
		`{"mergeOrigin":"`+origin.ID.String()+`","mergeDestination":"`+dest.ID.String()+`"}`)
	assert.Equal(t, "completed", f.await(t, id)["status"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/mailboxes/merging", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/mailboxes/merging",
		`{"mergeOrigin":"`+dest.ID.String()+`","mergeDestination":"`+dest.ID.String()+`"}`).Code)
}

func TestMailRepositoryRoutes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mailRepos.Store(context.Background(), "var/mail/error", mailrepo.Mail{Key: "name1"}))

	id := f.submit(t, http.MethodPatch, "/api/v1/mailRepositories/var%2Fmail%2Ferror/mails/name1?action=reprocess&queue=spool", "")
	out := f.await(t, id)
	assert.Equal(t, "completed", out["status"])
	info := out["additionalInformation"].(map[string]any)
	assert.Equal(t, "var/mail/error", info["repositoryPath"])
	assert.Equal(t, "name1", info["mailKey"])

	id = f.submit(t, http.MethodDelete, "/api/v1/mailRepositories/var%2Fmail%2Ferror/mails", "")
	assert.Equal(t, "completed", f.await(t, id)["status"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/v1/mailRepositories/var%2Fmail%2Ferror/mails", "").Code)
}

func TestVaultRoutes(t *testing.T) {
	f := newFixture(t)

	id := f.submit(t, http.MethodPost, "/api/v1/deletedMessages/users/james?action=restore", "")
	out := f.await(t, id)
	assert.Equal(t, "completed", out["status"])
	assert.Equal(t, "deletedMessages/restore", out["type"])

	id = f.submit(t, http.MethodPost, "/api/v1/deletedMessages/users/james?action=export&exportTo=james@apache.org",
		`{"combinator":"and","criteria":[{"fieldName":"subject","operator":"contains","value":"x"}]}`)
	assert.Equal(t, "completed", f.await(t, id)["status"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/deletedMessages/users/james?action=export&exportTo=invalid", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/deletedMessages/users/james?action=purge", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/deletedMessages/users/james?action=restore",
		`{"criteria":[{"fieldName":"size","operator":"equals","value":"1"}]}`).Code)
}

func TestSchemaUpgrade_WithoutDatabase(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/v1/schema/upgrade", `{"toVersion":2}`).Code)
}

func TestCancelTask(t *testing.T) {
	f := newFixture(t)
	id := f.submit(t, http.MethodPost, "/api/v1/mailboxes?task=reIndex", "")
	f.await(t, id)
	// 终态任务的取消请求被忽略
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/tasks/"+id, "").Code)
	assert.Equal(t, "completed", f.await(t, id)["status"])
}

func TestPublishEvent_FailedListenerGoesToDeadLetters(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bus.Register("broken", events.ListenerFunc(func(context.Context, events.Event) error {
		return assert.AnError
	})))

	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/events", `{"kind":"added"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/events", `not json`).Code)

	ids, err := deadletter.CollectInsertionIDs(context.Background(), f.store, "broken")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)

	_, err := f.store.Store(context.Background(), "g", events.Event("e"))
	require.NoError(t, err)
	w := f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), healthcheck.StatusDegraded)
}

// recordedTasks 只读的任务记录，List 与数据库一致按提交时间倒序
type recordedTasks struct {
	records []repository.Record
}

func (r *recordedTasks) Record(context.Context, task.Task, task.Details) error { return nil }

func (r *recordedTasks) Get(_ context.Context, id task.ID) (repository.Record, error) {
	for _, rec := range r.records {
		if rec.TaskID == id.String() {
			return rec, nil
		}
	}
	return repository.Record{}, repository.ErrNotFound
}

func (r *recordedTasks) List(_ context.Context, f repository.ListFilter) ([]repository.Record, error) {
	var out []repository.Record
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if (f.Status == "" || rec.Status == f.Status) && (f.Type == "" || rec.Type == f.Type) {
			out = append(out, rec)
		}
	}
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *recordedTasks) Count(ctx context.Context, f repository.ListFilter) (int, error) {
	out, err := r.List(ctx, repository.ListFilter{Status: f.Status, Type: f.Type})
	return len(out), err
}

func TestListTasks_MergesRecordsInSubmissionOrder(t *testing.T) {
	older := time.Now().Add(-2 * time.Hour)
	repo := &recordedTasks{records: []repository.Record{
		{TaskID: "0b9a7c52-8a4e-4c36-9a53-1d3f0c1a0001", Type: "FullReIndexing", Status: "completed", SubmittedAt: older},
		{TaskID: "0b9a7c52-8a4e-4c36-9a53-1d3f0c1a0002", Type: "FullReIndexing", Status: "failed", SubmittedAt: older.Add(time.Minute)},
	}}
	f := newFixture(t, func(d *Deps) { d.TaskRepo = repo })

	live := f.submit(t, http.MethodPost, "/api/v1/mailboxes?task=reIndex", "")
	f.await(t, live)

	list := func(query string) []string {
		t.Helper()
		w := f.do(t, http.MethodGet, "/api/v1/tasks"+query, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var items []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
		ids := make([]string, 0, len(items))
		for _, it := range items {
			ids = append(ids, it["taskId"].(string))
		}
		return ids
	}

	first, second := repo.records[0].TaskID, repo.records[1].TaskID
	assert.Equal(t, []string{first, second, live}, list(""))
	assert.Equal(t, []string{first, live}, list("?status=completed"))
	assert.Equal(t, []string{second}, list("?limit=1&offset=1"))
	assert.Equal(t, []string{second, live}, list("?offset=1"))
	assert.Empty(t, list("?offset=5"))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/tasks?limit=-1", "").Code)

	w := f.do(t, http.MethodGet, "/api/v1/tasks/"+first, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
}

var _ repository.TaskRepository = (*recordedTasks)(nil)

func TestSwaggerDoc_CoversRoutes(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "/api/v1", doc.BasePath)

	for _, route := range f.handler.(*gin.Engine).Routes() {
		if route.Path == "/metrics" || strings.HasPrefix(route.Path, "/swagger/") {
			continue
		}
		path := strings.TrimPrefix(route.Path, "/api/v1")
		segments := strings.Split(path, "/")
		for i, seg := range segments {
			if strings.HasPrefix(seg, ":") {
				segments[i] = "{" + seg[1:] + "}"
			}
		}
		path = strings.Join(segments, "/")
		ops, ok := doc.Paths[path]
		if assert.True(t, ok, "missing path %s", path) {
			assert.Contains(t, ops, strings.ToLower(route.Method), path)
		}
	}
}
