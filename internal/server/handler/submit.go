package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/internal/middleware"
	"github.com/azhengyongqin/mail-taskhub/internal/server/dto"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

// Submitter 任务提交入口，*task.Manager 实现了它
type Submitter interface {
	Submit(t task.Task) (task.ID, error)
}

// submit 提交任务并返回 201 {"taskId": ...}
func submit(c *gin.Context, s Submitter, t task.Task) {
	id, err := s.Submit(t)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, task.ErrManagerClosed) {
			status = http.StatusServiceUnavailable
		}
		respondError(c, status, "任务提交失败", err)
		return
	}
	c.Set(middleware.ContextKeySubmittedTask, id.String())
	logger.WithRequestID(middleware.GetRequestID(c)).Info().
		Str("task_id", id.String()).
		Str("task_type", t.Type()).
		Msg("任务已提交")
	c.JSON(http.StatusCreated, dto.TaskIDResponse{TaskID: id.String()})
}

func respondError(c *gin.Context, status int, msg string, err error) {
	resp := dto.ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, resp)
}
