package dto

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error" example:"错误信息"`
	Details string `json:"details,omitempty"`
}

// TaskIDResponse 提交任务后的响应（201）
type TaskIDResponse struct {
	TaskID string `json:"taskId" example:"550e8400-e29b-41d4-a716-446655440000"`
}
