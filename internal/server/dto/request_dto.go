package dto

// MergeMailboxesRequest 邮箱合并请求
type MergeMailboxesRequest struct {
	MergeOrigin      string `json:"mergeOrigin" binding:"required" example:"1"`
	MergeDestination string `json:"mergeDestination" binding:"required" example:"2"`
}

// SchemaUpgradeRequest 数据库升级请求
type SchemaUpgradeRequest struct {
	ToVersion int64 `json:"toVersion" binding:"required,gte=1" example:"2"`
}

// ReprocessRequest 邮件仓库重新处理参数
type ReprocessRequest struct {
	Action    string `form:"action" binding:"required,eq=reprocess"`
	Queue     string `form:"queue"`
	Processor string `form:"processor"`
}
