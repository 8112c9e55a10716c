package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/mailrepo"
	"github.com/azhengyongqin/mail-taskhub/internal/server/dto"
)

// MailRepositoryHandler 邮件仓库的重新处理与清空
type MailRepositoryHandler struct {
	submitter Submitter
	repo      mailrepo.Repository
	queue     mailrepo.MailQueue
}

func NewMailRepositoryHandler(submitter Submitter, repo mailrepo.Repository, queue mailrepo.MailQueue) *MailRepositoryHandler {
	return &MailRepositoryHandler{submitter: submitter, repo: repo, queue: queue}
}

func (h *MailRepositoryHandler) path(c *gin.Context) (mailrepo.Path, bool) {
	p, err := mailrepo.ParsePath(c.Param("repository"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "repository 无效", err)
		return "", false
	}
	return p, true
}

func reprocessTarget(c *gin.Context) (mailrepo.Target, bool) {
	var req dto.ReprocessRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "action 必须为 reprocess", err)
		return mailrepo.Target{}, false
	}
	target := mailrepo.Target{Queue: req.Queue, Processor: req.Processor}
	if target.Queue == "" {
		target.Queue = mailrepo.DefaultQueue
	}
	return target, true
}

// ReprocessAll godoc
// @Summary 重新处理仓库中的全部邮件
// @Tags MailRepositories
// @Produce json
// @Param repository path string true "仓库路径（/ 需编码为 %2F）"
// @Param action query string true "固定为 reprocess"
// @Param queue query string false "目标队列"
// @Param processor query string false "目标处理器"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /mailRepositories/{repository}/mails [patch]
func (h *MailRepositoryHandler) ReprocessAll(c *gin.Context) {
	path, ok := h.path(c)
	if !ok {
		return
	}
	target, ok := reprocessTarget(c)
	if !ok {
		return
	}
	submit(c, h.submitter, mailrepo.NewReprocessAllTask(h.repo, h.queue, path, target))
}

// ReprocessOne godoc
// @Summary 重新处理单封邮件
// @Tags MailRepositories
// @Produce json
// @Param repository path string true "仓库路径（/ 需编码为 %2F）"
// @Param mail_key path string true "邮件 key"
// @Param action query string true "固定为 reprocess"
// @Param queue query string false "目标队列"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /mailRepositories/{repository}/mails/{mail_key} [patch]
func (h *MailRepositoryHandler) ReprocessOne(c *gin.Context) {
	path, ok := h.path(c)
	if !ok {
		return
	}
	key, err := mailrepo.ParseKey(c.Param("mail_key"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "mail_key 无效", err)
		return
	}
	target, ok := reprocessTarget(c)
	if !ok {
		return
	}
	submit(c, h.submitter, mailrepo.NewReprocessOneTask(h.repo, h.queue, path, key, target))
}

// Clear godoc
// @Summary 清空邮件仓库
// @Tags MailRepositories
// @Produce json
// @Param repository path string true "仓库路径（/ 需编码为 %2F）"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /mailRepositories/{repository}/mails [delete]
func (h *MailRepositoryHandler) Clear(c *gin.Context) {
	path, ok := h.path(c)
	if !ok {
		return
	}
	submit(c, h.submitter, mailrepo.NewClearTask(h.repo, path))
}
