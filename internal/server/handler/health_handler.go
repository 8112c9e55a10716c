package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/healthcheck"
	"github.com/azhengyongqin/mail-taskhub/internal/server/dto"
)

// HealthHandler /healthz 与 /readyz
type HealthHandler struct {
	checker *healthcheck.HealthChecker
}

func NewHealthHandler(checker *healthcheck.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func toHealthResponse(r healthcheck.CheckResult) dto.HealthResponse {
	return dto.HealthResponse{Status: r.Status, Checks: r.Checks}
}

// Liveness godoc
// @Summary Liveness 检查
// @Description 只反映进程是否存活
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusOK, dto.HealthResponse{Status: healthcheck.StatusOK})
		return
	}
	c.JSON(http.StatusOK, toHealthResponse(h.checker.LivenessCheck()))
}

// Readiness godoc
// @Summary Readiness 检查
// @Description 依赖不可用时 503；仅有死信堆积（degraded）仍返回 200
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusOK, dto.HealthResponse{Status: healthcheck.StatusOK})
		return
	}
	result := h.checker.ReadinessCheck(c.Request.Context())
	status := http.StatusOK
	if result.Status == healthcheck.StatusError {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, toHealthResponse(result))
}
