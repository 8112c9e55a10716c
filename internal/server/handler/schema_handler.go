package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/migration"
	"github.com/azhengyongqin/mail-taskhub/internal/server/dto"
)

// SchemaHandler 数据库结构升级
type SchemaHandler struct {
	submitter Submitter
	migrator  migration.Migrator
}

// NewSchemaHandler migrator 为空表示未配置数据库
func NewSchemaHandler(submitter Submitter, migrator migration.Migrator) *SchemaHandler {
	return &SchemaHandler{submitter: submitter, migrator: migrator}
}

// Upgrade godoc
// @Summary 升级数据库结构
// @Tags Schema
// @Accept json
// @Produce json
// @Param request body dto.SchemaUpgradeRequest true "目标版本"
// @Success 201 {object} dto.TaskIDResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /schema/upgrade [post]
func (h *SchemaHandler) Upgrade(c *gin.Context) {
	if h.migrator == nil {
		respondError(c, http.StatusServiceUnavailable, "未配置 PostgreSQL", nil)
		return
	}
	var req dto.SchemaUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求体无效", err)
		return
	}
	if err := migration.ValidateVersion(h.migrator, req.ToVersion); err != nil {
		respondError(c, http.StatusBadRequest, "toVersion 无效", err)
		return
	}
	submit(c, h.submitter, migration.NewTask(h.migrator, req.ToVersion))
}
