package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client HTTP 客户端，用于与控制面通信
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient 创建客户端
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIError 非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("unexpected status %d: %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Task 任务详情
type Task struct {
	Status                string          `json:"status"`
	TaskID                string          `json:"taskId"`
	Type                  string          `json:"type"`
	AdditionalInformation json.RawMessage `json:"additionalInformation,omitempty"`
	SubmitDate            time.Time       `json:"submitDate"`
	StartedDate           *time.Time      `json:"startedDate,omitempty"`
	CompletedDate         *time.Time      `json:"completedDate,omitempty"`
	FailedDate            *time.Time      `json:"failedDate,omitempty"`
	CancelledDate         *time.Time      `json:"cancelledDate,omitempty"`
	Error                 string          `json:"error,omitempty"`
}

// do 发送请求；out 为空时丢弃响应体
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.BaseURL + "/api/v1" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// submit 提交任务类接口，返回 taskId
func (c *Client) submit(ctx context.Context, method, path string, query url.Values, body any) (string, error) {
	var result struct {
		TaskID string `json:"taskId"`
	}
	if err := c.do(ctx, method, path, query, body, &result); err != nil {
		return "", err
	}
	return result.TaskID, nil
}

// GetTask 查询任务详情
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var t Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks status 为空时返回全部任务
func (c *Client) ListTasks(ctx context.Context, status string) ([]Task, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var out []Task
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AwaitTask 阻塞等待任务进入终态；timeout 为 0 时使用服务端上限
func (c *Client) AwaitTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error) {
	q := url.Values{}
	if timeout > 0 {
		q.Set("timeout", timeout.String())
	}
	var t Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/await", q, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelTask 请求取消任务
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(taskID), nil, nil, nil)
}

// ListDeadLetterGroups 持有死信的 group
func (c *Client) ListDeadLetterGroups(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/events/deadLetter/groups", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDeadLetters group 下的 insertion id
func (c *Client) ListDeadLetters(ctx context.Context, group string) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/events/deadLetter/groups/"+url.PathEscape(group), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Redeliver 重投死信。group 为空时重投全部；insertionID 非空时只重投一条
func (c *Client) Redeliver(ctx context.Context, group, insertionID string) (string, error) {
	path := "/events/deadLetter"
	if group != "" {
		path += "/groups/" + url.PathEscape(group)
		if insertionID != "" {
			path += "/" + url.PathEscape(insertionID)
		}
	}
	return c.submit(ctx, http.MethodPost, path, url.Values{"action": {"reDeliver"}}, nil)
}

// ReIndex 全量重建索引；user 非空时只处理该用户
func (c *Client) ReIndex(ctx context.Context, user string) (string, error) {
	q := url.Values{"task": {"reIndex"}}
	if user != "" {
		q.Set("user", user)
	}
	return c.submit(ctx, http.MethodPost, "/mailboxes", q, nil)
}

// ReIndexFailures 重试某次重建索引失败的邮件
func (c *Client) ReIndexFailures(ctx context.Context, taskID string) (string, error) {
	q := url.Values{"task": {"reIndex"}, "reIndexFailedMessagesOf": {taskID}}
	return c.submit(ctx, http.MethodPost, "/mailboxes", q, nil)
}

// ReprocessMailRepository 将仓库中的全部邮件重新投入 queue
func (c *Client) ReprocessMailRepository(ctx context.Context, repository, queue string) (string, error) {
	q := url.Values{"action": {"reprocess"}}
	if queue != "" {
		q.Set("queue", queue)
	}
	return c.submit(ctx, http.MethodPatch, "/mailRepositories/"+url.PathEscape(repository)+"/mails", q, nil)
}

// UpgradeSchema 迁移数据库结构到 toVersion
func (c *Client) UpgradeSchema(ctx context.Context, toVersion int64) (string, error) {
	return c.submit(ctx, http.MethodPost, "/schema/upgrade", nil, map[string]int64{"toVersion": toVersion})
}
