package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/merging"
	"github.com/azhengyongqin/mail-taskhub/internal/reindex"
	"github.com/azhengyongqin/mail-taskhub/internal/repository"
	"github.com/azhengyongqin/mail-taskhub/internal/server/dto"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

const taskReIndex = "reIndex"

// InformationSource 按任务 ID 读取最近快照
type InformationSource func(ctx context.Context, id task.ID) (task.AdditionalInformation, error)

// MailboxHandler 重建索引与邮箱合并
type MailboxHandler struct {
	submitter Submitter
	performer *reindex.Performer
	repo      mailbox.Repository
	ids       mailbox.IDFactory
	infoOf    InformationSource
}

func NewMailboxHandler(submitter Submitter, performer *reindex.Performer, repo mailbox.Repository, ids mailbox.IDFactory, infoOf InformationSource) *MailboxHandler {
	return &MailboxHandler{submitter: submitter, performer: performer, repo: repo, ids: ids, infoOf: infoOf}
}

func requireReIndex(c *gin.Context) bool {
	if t := c.Query("task"); t != taskReIndex {
		respondError(c, http.StatusBadRequest, "task 必须为 reIndex", fmt.Errorf("unsupported task %q", t))
		return false
	}
	return true
}

func (h *MailboxHandler) mailboxID(c *gin.Context) (mailbox.ID, bool) {
	id, err := h.ids.FromString(c.Param("mailbox_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "mailbox_id 无效", err)
		return "", false
	}
	return id, true
}

// ReIndex godoc
// @Summary 重建索引
// @Description 默认重建全部邮件；指定 user 时只处理该用户，指定 reIndexFailedMessagesOf 时重试该任务的失败邮件
// @Tags Mailboxes
// @Produce json
// @Param task query string true "固定为 reIndex"
// @Param user query string false "用户名"
// @Param reIndexFailedMessagesOf query string false "此前重建索引任务的 ID"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /mailboxes [post]
func (h *MailboxHandler) ReIndex(c *gin.Context) {
	if !requireReIndex(c) {
		return
	}
	user, failedOf := c.Query("user"), c.Query("reIndexFailedMessagesOf")
	switch {
	case user != "" && failedOf != "":
		respondError(c, http.StatusBadRequest, "user 与 reIndexFailedMessagesOf 不能同时指定", nil)
	case user != "":
		username, err := mailbox.ParseUsername(user)
		if err != nil {
			respondError(c, http.StatusBadRequest, "user 无效", err)
			return
		}
		submit(c, h.submitter, reindex.NewUserTask(h.performer, username))
	case failedOf != "":
		h.reIndexFailures(c, failedOf)
	default:
		submit(c, h.submitter, reindex.NewFullTask(h.performer))
	}
}

func (h *MailboxHandler) reIndexFailures(c *gin.Context, rawID string) {
	id, err := task.ParseID(rawID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "reIndexFailedMessagesOf 无效", err)
		return
	}
	info, err := h.infoOf(c.Request.Context(), id)
	if errors.Is(err, task.ErrTaskNotFound) || errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusBadRequest, "任务不存在", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取任务快照失败", err)
		return
	}
	failures, ok := reindex.FailuresOf(info)
	if !ok {
		respondError(c, http.StatusBadRequest, "该任务不是重建索引任务", fmt.Errorf("task %s has no reindexing failures", id))
		return
	}
	submit(c, h.submitter, reindex.NewErrorRecoveryTask(h.performer, failures))
}

// ReIndexMailbox godoc
// @Summary 重建邮箱索引
// @Tags Mailboxes
// @Produce json
// @Param mailbox_id path string true "邮箱 ID"
// @Param task query string true "固定为 reIndex"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /mailboxes/{mailbox_id} [post]
func (h *MailboxHandler) ReIndexMailbox(c *gin.Context) {
	if !requireReIndex(c) {
		return
	}
	id, ok := h.mailboxID(c)
	if !ok {
		return
	}
	submit(c, h.submitter, reindex.NewMailboxTask(h.performer, id))
}

// ReIndexMessage godoc
// @Summary 重建单封邮件索引
// @Tags Mailboxes
// @Produce json
// @Param mailbox_id path string true "邮箱 ID"
// @Param uid path int true "邮件 UID"
// @Param task query string true "固定为 reIndex"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /mailboxes/{mailbox_id}/mails/{uid} [post]
func (h *MailboxHandler) ReIndexMessage(c *gin.Context) {
	if !requireReIndex(c) {
		return
	}
	id, ok := h.mailboxID(c)
	if !ok {
		return
	}
	uid, err := mailbox.ParseMessageUID(c.Param("uid"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "uid 无效", err)
		return
	}
	submit(c, h.submitter, reindex.NewMessageTask(h.performer, id, uid))
}

// ReIndexMessageID godoc
// @Summary 按 MessageId 重建索引
// @Tags Mailboxes
// @Produce json
// @Param message_id path string true "MessageId"
// @Param task query string true "固定为 reIndex"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /messages/{message_id} [post]
func (h *MailboxHandler) ReIndexMessageID(c *gin.Context) {
	if !requireReIndex(c) {
		return
	}
	id, err := mailbox.ParseMessageID(c.Param("message_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "message_id 无效", err)
		return
	}
	submit(c, h.submitter, reindex.NewMessageIDTask(h.performer, id))
}

// Merge godoc
// @Summary 合并邮箱
// @Tags Mailboxes
// @Accept json
// @Produce json
// @Param request body dto.MergeMailboxesRequest true "合并请求"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /mailboxes/merging [post]
func (h *MailboxHandler) Merge(c *gin.Context) {
	var req dto.MergeMailboxesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求体无效", err)
		return
	}
	oldID, err := h.ids.FromString(req.MergeOrigin)
	if err != nil {
		respondError(c, http.StatusBadRequest, "mergeOrigin 无效", err)
		return
	}
	newID, err := h.ids.FromString(req.MergeDestination)
	if err != nil {
		respondError(c, http.StatusBadRequest, "mergeDestination 无效", err)
		return
	}
	if oldID == newID {
		respondError(c, http.StatusBadRequest, "不能将邮箱合并到自身", nil)
		return
	}
	submit(c, h.submitter, merging.NewTask(h.repo, oldID, newID))
}
