package task

import "github.com/azhengyongqin/mail-taskhub/internal/serialization"

// TaskRegistry 任务对象的序列化注册表
type TaskRegistry = serialization.Registry[Task]

// AdditionalInformationRegistry 进度快照的序列化注册表。
// 与 TaskRegistry 相互独立：快照需要在没有原任务实例时也能还原（例如从数据库读取）。
type AdditionalInformationRegistry = serialization.Registry[AdditionalInformation]

func NewTaskRegistry() *TaskRegistry {
	return serialization.NewRegistry[Task]("task")
}

func NewAdditionalInformationRegistry() *AdditionalInformationRegistry {
	return serialization.NewRegistry[AdditionalInformation]("additionalInformation")
}
