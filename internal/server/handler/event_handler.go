package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
)

// Publisher 事件入口，*eventbus.Bus 实现了它
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// EventHandler 接收外部投递的事件
type EventHandler struct {
	publisher Publisher
}

func NewEventHandler(publisher Publisher) *EventHandler {
	return &EventHandler{publisher: publisher}
}

// Publish godoc
// @Summary 发布事件
// @Description 请求体为事件 JSON 原文；监听器失败的事件已写入死信，仍返回 202
// @Tags Events
// @Accept json
// @Param event body object true "事件"
// @Success 202
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Publish(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取请求体失败", err)
		return
	}
	if !json.Valid(body) {
		respondError(c, http.StatusBadRequest, "事件必须为 JSON", nil)
		return
	}
	if err := h.publisher.Publish(c.Request.Context(), events.Event(body)); err != nil {
		respondError(c, http.StatusInternalServerError, "事件投递失败", err)
		return
	}
	c.Status(http.StatusAccepted)
}
