package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/model"
	"github.com/azhengyongqin/mail-taskhub/internal/repository"
	"github.com/azhengyongqin/mail-taskhub/internal/server/dto"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

// TaskHandler 任务查询、等待与取消
type TaskHandler struct {
	manager  *task.Manager
	infos    *task.AdditionalInformationRegistry
	taskRepo repository.TaskRepository
	awaitMax time.Duration
}

// NewTaskHandler taskRepo 可以为空；awaitMax 为 await 接口允许的最长等待
func NewTaskHandler(manager *task.Manager, infos *task.AdditionalInformationRegistry, taskRepo repository.TaskRepository, awaitMax time.Duration) *TaskHandler {
	return &TaskHandler{manager: manager, infos: infos, taskRepo: taskRepo, awaitMax: awaitMax}
}

func (h *TaskHandler) response(d task.Details) dto.TaskDetailsResponse {
	var info json.RawMessage
	if d.AdditionalInformation != nil {
		b, err := h.infos.Serialize(d.AdditionalInformation)
		if err != nil {
			logger.Warn().Err(err).Str("task_id", d.ID.String()).Msg("快照序列化失败")
		} else {
			info = b
		}
	}
	return dto.NewTaskDetailsResponse(d, info)
}

// details 先查内存，再回退到持久化记录
func (h *TaskHandler) details(c *gin.Context, id task.ID) (task.Details, bool) {
	d, err := h.manager.Get(id)
	if err == nil {
		return d, true
	}
	if h.taskRepo == nil {
		respondError(c, http.StatusNotFound, "任务不存在", err)
		return task.Details{}, false
	}
	rec, err := h.taskRepo.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "任务不存在", err)
		return task.Details{}, false
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取任务记录失败", err)
		return task.Details{}, false
	}
	d, err = rec.Decode(h.infos)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "任务记录无法解析", err)
		return task.Details{}, false
	}
	return d, true
}

// GetTask godoc
// @Summary 查询任务详情
// @Tags Tasks
// @Produce json
// @Param task_id path string true "任务 ID（UUID）"
// @Success 200 {object} dto.TaskDetailsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{task_id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	id := c.MustGet("task_id").(task.ID)
	d, ok := h.details(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.response(d))
}

// recordPageSize 每次从数据库读取的记录数
const recordPageSize = 200

// ListTasks godoc
// @Summary 查询任务列表
// @Description 内存任务与持久化记录合并后按提交时间升序，再统一分页
// @Tags Tasks
// @Produce json
// @Param status query string false "状态" Enums(waiting, in-progress, completed, failed, cancelled)
// @Param type query string false "任务类型"
// @Param limit query int false "条数，0 表示不限"
// @Param offset query int false "偏移"
// @Success 200 {array} dto.TaskDetailsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var req dto.TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "查询参数无效", err)
		return
	}
	if req.Limit < 0 || req.Offset < 0 {
		respondError(c, http.StatusBadRequest, "limit/offset 不能为负数", nil)
		return
	}

	var items []task.Details
	if req.Status == "" {
		items = h.manager.List()
	} else {
		status, ok := model.ParseTaskStatus(req.Status)
		if !ok {
			respondError(c, http.StatusBadRequest, "status 无效", fmt.Errorf("unknown status %q", req.Status))
			return
		}
		items = h.manager.ListByStatus(status)
	}

	if h.taskRepo != nil {
		items = h.mergeRecords(c.Request.Context(), items, req)
	}
	if req.Type != "" {
		items = slices.DeleteFunc(items, func(d task.Details) bool { return d.Type != req.Type })
	}
	sortBySubmission(items)
	items = paginate(items, req.Offset, req.Limit)

	out := make([]dto.TaskDetailsResponse, 0, len(items))
	for _, d := range items {
		out = append(out, h.response(d))
	}
	c.JSON(http.StatusOK, out)
}

// mergeRecords 补上只存在于数据库（例如重启前）的任务；内存中的任务以内存状态为准
func (h *TaskHandler) mergeRecords(ctx context.Context, items []task.Details, req dto.TaskListRequest) []task.Details {
	live := make(map[task.ID]struct{})
	for _, d := range h.manager.List() {
		live[d.ID] = struct{}{}
	}

	filter := repository.ListFilter{
		Status: model.TaskStatus(req.Status),
		Type:   req.Type,
		Limit:  recordPageSize,
	}
	for {
		records, err := h.taskRepo.List(ctx, filter)
		if err != nil {
			logger.Warn().Err(err).Msg("读取任务记录失败，仅返回内存中的任务")
			return items
		}
		for _, rec := range records {
			if _, ok := live[task.ID(rec.TaskID)]; ok {
				continue
			}
			d, err := rec.Decode(h.infos)
			if err != nil {
				logger.Warn().Err(err).Str("task_id", rec.TaskID).Msg("跳过无法解析的任务记录")
				continue
			}
			items = append(items, d)
		}
		if len(records) < recordPageSize {
			return items
		}
		filter.Offset += len(records)
	}
}

func sortBySubmission(items []task.Details) {
	slices.SortStableFunc(items, func(a, b task.Details) int {
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

// paginate limit 为 0 时不限制条数
func paginate(items []task.Details, offset, limit int) []task.Details {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// AwaitTask godoc
// @Summary 等待任务结束
// @Tags Tasks
// @Produce json
// @Param task_id path string true "任务 ID（UUID）"
// @Param timeout query string false "等待时长，如 30s"
// @Success 200 {object} dto.TaskDetailsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 408 {object} dto.ErrorResponse
// @Router /tasks/{task_id}/await [get]
func (h *TaskHandler) AwaitTask(c *gin.Context) {
	id := c.MustGet("task_id").(task.ID)

	var req dto.AwaitRequest
	_ = c.ShouldBindQuery(&req)
	timeout := h.awaitMax
	if req.Timeout != "" {
		parsed, err := time.ParseDuration(req.Timeout)
		if err != nil || parsed <= 0 {
			respondError(c, http.StatusBadRequest, "timeout 无效", err)
			return
		}
		if h.awaitMax > 0 && parsed > h.awaitMax {
			respondError(c, http.StatusBadRequest, "timeout 超过上限", fmt.Errorf("max %s", h.awaitMax))
			return
		}
		timeout = parsed
	}

	d, err := h.manager.Await(c.Request.Context(), id, timeout)
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		// 已不在内存中的任务只能是终态，直接返回记录
		if d, ok := h.details(c, id); ok {
			c.JSON(http.StatusOK, h.response(d))
		}
	case errors.Is(err, task.ErrAwaitTimeout):
		respondError(c, http.StatusRequestTimeout, "等待任务超时", err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, "等待任务失败", err)
	default:
		c.JSON(http.StatusOK, h.response(d))
	}
}

// CancelTask godoc
// @Summary 取消任务
// @Tags Tasks
// @Param task_id path string true "任务 ID（UUID）"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{task_id} [delete]
func (h *TaskHandler) CancelTask(c *gin.Context) {
	id := c.MustGet("task_id").(task.ID)
	if err := h.manager.Cancel(id); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			respondError(c, http.StatusNotFound, "任务不存在", err)
			return
		}
		respondError(c, http.StatusInternalServerError, "取消任务失败", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Information 任务的最近快照，内存中没有时读取持久化记录
func (h *TaskHandler) Information(ctx context.Context, id task.ID) (task.AdditionalInformation, error) {
	info, err := h.manager.GetAdditionalInformation(id)
	if err == nil || h.taskRepo == nil || !errors.Is(err, task.ErrTaskNotFound) {
		return info, err
	}
	rec, err := h.taskRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := rec.Decode(h.infos)
	if err != nil {
		return nil, err
	}
	return d.AdditionalInformation, nil
}
