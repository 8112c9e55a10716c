package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/redeliver"
)

const actionReDeliver = "reDeliver"

// DeadLetterHandler 死信查询、删除与重投
type DeadLetterHandler struct {
	submitter  Submitter
	store      deadletter.Store
	dispatcher events.Dispatcher
}

func NewDeadLetterHandler(submitter Submitter, store deadletter.Store, dispatcher events.Dispatcher) *DeadLetterHandler {
	return &DeadLetterHandler{submitter: submitter, store: store, dispatcher: dispatcher}
}

func requireReDeliver(c *gin.Context) bool {
	if action := c.Query("action"); action != actionReDeliver {
		respondError(c, http.StatusBadRequest, "action 必须为 reDeliver", fmt.Errorf("unsupported action %q", action))
		return false
	}
	return true
}

// ListGroups godoc
// @Summary 列出持有死信的监听组
// @Tags DeadLetters
// @Produce json
// @Success 200 {array} string
// @Failure 500 {object} dto.ErrorResponse
// @Router /events/deadLetter/groups [get]
func (h *DeadLetterHandler) ListGroups(c *gin.Context) {
	groups, err := h.store.ListGroups(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取死信 group 失败", err)
		return
	}
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.String())
	}
	c.JSON(http.StatusOK, out)
}

// ListInsertionIDs godoc
// @Summary 列出监听组下的死信
// @Tags DeadLetters
// @Produce json
// @Param group path string true "监听组"
// @Success 200 {array} string
// @Failure 400 {object} dto.ErrorResponse
// @Router /events/deadLetter/groups/{group} [get]
func (h *DeadLetterHandler) ListInsertionIDs(c *gin.Context) {
	group := c.MustGet("group").(events.Group)
	ids, err := deadletter.CollectInsertionIDs(c.Request.Context(), h.store, group)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取死信失败", err)
		return
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	c.JSON(http.StatusOK, out)
}

// GetEvent godoc
// @Summary 查看死信事件
// @Description 返回事件原文
// @Tags DeadLetters
// @Produce json
// @Param group path string true "监听组"
// @Param insertion_id path string true "死信 ID（UUID）"
// @Success 200 {object} object
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /events/deadLetter/groups/{group}/{insertion_id} [get]
func (h *DeadLetterHandler) GetEvent(c *gin.Context) {
	group := c.MustGet("group").(events.Group)
	id := c.MustGet("insertion_id").(deadletter.InsertionID)

	ev, err := h.store.Load(c.Request.Context(), group, id)
	if errors.Is(err, deadletter.ErrNotFound) {
		respondError(c, http.StatusNotFound, "死信不存在", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取死信失败", err)
		return
	}
	c.Data(http.StatusOK, "application/json", ev)
}

// DeleteEvent godoc
// @Summary 删除死信
// @Tags DeadLetters
// @Param group path string true "监听组"
// @Param insertion_id path string true "死信 ID（UUID）"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse
// @Router /events/deadLetter/groups/{group}/{insertion_id} [delete]
func (h *DeadLetterHandler) DeleteEvent(c *gin.Context) {
	group := c.MustGet("group").(events.Group)
	id := c.MustGet("insertion_id").(deadletter.InsertionID)

	if err := h.store.Remove(c.Request.Context(), group, id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除死信失败", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RedeliverAll godoc
// @Summary 重投全部死信
// @Tags DeadLetters
// @Produce json
// @Param action query string true "固定为 reDeliver"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /events/deadLetter [post]
func (h *DeadLetterHandler) RedeliverAll(c *gin.Context) {
	if !requireReDeliver(c) {
		return
	}
	submit(c, h.submitter, redeliver.NewAllTask(h.store, h.dispatcher))
}

// RedeliverGroup godoc
// @Summary 重投监听组的死信
// @Tags DeadLetters
// @Produce json
// @Param group path string true "监听组"
// @Param action query string true "固定为 reDeliver"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /events/deadLetter/groups/{group} [post]
func (h *DeadLetterHandler) RedeliverGroup(c *gin.Context) {
	if !requireReDeliver(c) {
		return
	}
	group := c.MustGet("group").(events.Group)
	submit(c, h.submitter, redeliver.NewGroupTask(h.store, h.dispatcher, group))
}

// RedeliverOne godoc
// @Summary 重投单条死信
// @Tags DeadLetters
// @Produce json
// @Param group path string true "监听组"
// @Param insertion_id path string true "死信 ID（UUID）"
// @Param action query string true "固定为 reDeliver"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /events/deadLetter/groups/{group}/{insertion_id} [post]
func (h *DeadLetterHandler) RedeliverOne(c *gin.Context) {
	if !requireReDeliver(c) {
		return
	}
	group := c.MustGet("group").(events.Group)
	id := c.MustGet("insertion_id").(deadletter.InsertionID)

	// 单条重投前确认存在，避免提交一个必然空跑的任务
	if _, err := h.store.Load(c.Request.Context(), group, id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, deadletter.ErrNotFound) {
			status = http.StatusNotFound
		}
		respondError(c, status, "死信不存在", err)
		return
	}
	submit(c, h.submitter, redeliver.NewSingleTask(h.store, h.dispatcher, group, id))
}
