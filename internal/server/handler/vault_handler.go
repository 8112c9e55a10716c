package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/mailbox"
	"github.com/azhengyongqin/mail-taskhub/internal/vault"
)

// VaultHandler 已删除邮件的恢复与导出
type VaultHandler struct {
	submitter Submitter
	vault     vault.Vault
	repo      mailbox.Repository
	exporter  vault.Exporter
}

func NewVaultHandler(submitter Submitter, v vault.Vault, repo mailbox.Repository, exporter vault.Exporter) *VaultHandler {
	return &VaultHandler{submitter: submitter, vault: v, repo: repo, exporter: exporter}
}

// Submit godoc
// @Summary 恢复或导出已删除邮件
// @Description 请求体为查询条件，省略时匹配全部
// @Tags DeletedMessages
// @Accept json
// @Produce json
// @Param user path string true "用户名"
// @Param action query string true "restore 或 export" Enums(restore, export)
// @Param exportTo query string false "导出目标地址，action=export 时必填"
// @Param query body vault.Query false "查询条件"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /deletedMessages/users/{user} [post]
func (h *VaultHandler) Submit(c *gin.Context) {
	user, err := mailbox.ParseUsername(c.Param("user"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "user 无效", err)
		return
	}

	// 请求体可省略，等价于匹配全部
	q := vault.MatchAll()
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&q); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, http.StatusBadRequest, "查询条件无效", err)
			return
		}
	}
	if err := q.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "查询条件无效", err)
		return
	}

	switch action := c.Query("action"); action {
	case "restore":
		submit(c, h.submitter, vault.NewRestoreTask(h.vault, h.repo, user, q))
	case "export":
		to, err := vault.ParseExportTo(c.Query("exportTo"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "exportTo 无效", err)
			return
		}
		submit(c, h.submitter, vault.NewExportTask(h.vault, h.exporter, user, q, to))
	default:
		respondError(c, http.StatusBadRequest, "action 必须为 restore 或 export", nil)
	}
}
