// Package docs 控制面 API 的 Swagger 描述，与 handler 上的注解保持一致
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/deletedMessages/users/{user}": {
            "post": {
                "description": "请求体为查询条件，省略时匹配全部",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "DeletedMessages"
                ],
                "summary": "恢复或导出已删除邮件",
                "parameters": [
                    {
                        "type": "string",
                        "description": "用户名",
                        "name": "user",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "restore 或 export",
                        "name": "action",
                        "in": "query",
                        "required": true,
                        "enum": [
                            "restore",
                            "export"
                        ]
                    },
                    {
                        "type": "string",
                        "description": "导出目标地址，action=export 时必填",
                        "name": "exportTo",
                        "in": "query"
                    },
                    {
                        "description": "查询条件",
                        "name": "query",
                        "in": "body",
                        "schema": {
                            "$ref": "#/definitions/vault.Query"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/events": {
            "post": {
                "description": "请求体为事件 JSON 原文；监听器失败的事件已写入死信，仍返回 202",
                "consumes": [
                    "application/json"
                ],
                "tags": [
                    "Events"
                ],
                "summary": "发布事件",
                "parameters": [
                    {
                        "description": "事件",
                        "name": "event",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/events/deadLetter": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "DeadLetters"
                ],
                "summary": "重投全部死信",
                "parameters": [
                    {
                        "type": "string",
                        "description": "固定为 reDeliver",
                        "name": "action",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/events/deadLetter/groups": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "DeadLetters"
                ],
                "summary": "列出持有死信的监听组",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "type": "string"
                            }
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/events/deadLetter/groups/{group}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "DeadLetters"
                ],
                "summary": "列出监听组下的死信",
                "parameters": [
                    {
                        "type": "string",
                        "description": "监听组",
                        "name": "group",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "type": "string"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            },
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "DeadLetters"
                ],
                "summary": "重投监听组的死信",
                "parameters": [
                    {
                        "type": "string",
                        "description": "监听组",
                        "name": "group",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "固定为 reDeliver",
                        "name": "action",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/events/deadLetter/groups/{group}/{insertion_id}": {
            "get": {
                "description": "返回事件原文",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "DeadLetters"
                ],
                "summary": "查看死信事件",
                "parameters": [
                    {
                        "type": "string",
                        "description": "监听组",
                        "name": "group",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "死信 ID（UUID）",
                        "name": "insertion_id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            },
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "DeadLetters"
                ],
                "summary": "重投单条死信",
                "parameters": [
                    {
                        "type": "string",
                        "description": "监听组",
                        "name": "group",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "死信 ID（UUID）",
                        "name": "insertion_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "固定为 reDeliver",
                        "name": "action",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "DeadLetters"
                ],
                "summary": "删除死信",
                "parameters": [
                    {
                        "type": "string",
                        "description": "监听组",
                        "name": "group",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "死信 ID（UUID）",
                        "name": "insertion_id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/healthz": {
            "get": {
                "description": "只反映进程是否存活",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Health"
                ],
                "summary": "Liveness 检查",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.HealthResponse"
                        }
                    }
                }
            }
        },
        "/mailRepositories/{repository}/mails": {
            "patch": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "MailRepositories"
                ],
                "summary": "重新处理仓库中的全部邮件",
                "parameters": [
                    {
                        "type": "string",
                        "description": "仓库路径（/ 需编码为 %2F）",
                        "name": "repository",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "固定为 reprocess",
                        "name": "action",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "目标队列",
                        "name": "queue",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "目标处理器",
                        "name": "processor",
                        "in": "query"
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "MailRepositories"
                ],
                "summary": "清空邮件仓库",
                "parameters": [
                    {
                        "type": "string",
                        "description": "仓库路径（/ 需编码为 %2F）",
                        "name": "repository",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/mailRepositories/{repository}/mails/{mail_key}": {
            "patch": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "MailRepositories"
                ],
                "summary": "重新处理单封邮件",
                "parameters": [
                    {
                        "type": "string",
                        "description": "仓库路径（/ 需编码为 %2F）",
                        "name": "repository",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "邮件 key",
                        "name": "mail_key",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "固定为 reprocess",
                        "name": "action",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "目标队列",
                        "name": "queue",
                        "in": "query"
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/mailboxes": {
            "post": {
                "description": "默认重建全部邮件；指定 user 时只处理该用户，指定 reIndexFailedMessagesOf 时重试该任务的失败邮件",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Mailboxes"
                ],
                "summary": "重建索引",
                "parameters": [
                    {
                        "type": "string",
                        "description": "固定为 reIndex",
                        "name": "task",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "用户名",
                        "name": "user",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "此前重建索引任务的 ID",
                        "name": "reIndexFailedMessagesOf",
                        "in": "query"
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/mailboxes/merging": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Mailboxes"
                ],
                "summary": "合并邮箱",
                "parameters": [
                    {
                        "description": "合并请求",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.MergeMailboxesRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/mailboxes/{mailbox_id}": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Mailboxes"
                ],
                "summary": "重建邮箱索引",
                "parameters": [
                    {
                        "type": "string",
                        "description": "邮箱 ID",
                        "name": "mailbox_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "固定为 reIndex",
                        "name": "task",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/mailboxes/{mailbox_id}/mails/{uid}": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Mailboxes"
                ],
                "summary": "重建单封邮件索引",
                "parameters": [
                    {
                        "type": "string",
                        "description": "邮箱 ID",
                        "name": "mailbox_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "邮件 UID",
                        "name": "uid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "固定为 reIndex",
                        "name": "task",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/messages/{message_id}": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Mailboxes"
                ],
                "summary": "按 MessageId 重建索引",
                "parameters": [
                    {
                        "type": "string",
                        "description": "MessageId",
                        "name": "message_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "固定为 reIndex",
                        "name": "task",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "依赖不可用时 503；仅有死信堆积（degraded）仍返回 200",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Health"
                ],
                "summary": "Readiness 检查",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.HealthResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/dto.HealthResponse"
                        }
                    }
                }
            }
        },
        "/schema/upgrade": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Schema"
                ],
                "summary": "升级数据库结构",
                "parameters": [
                    {
                        "description": "目标版本",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.SchemaUpgradeRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskIDResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/tasks": {
            "get": {
                "description": "内存任务与持久化记录合并后按提交时间升序，再统一分页",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Tasks"
                ],
                "summary": "查询任务列表",
                "parameters": [
                    {
                        "type": "string",
                        "description": "状态",
                        "name": "status",
                        "in": "query",
                        "enum": [
                            "waiting",
                            "in-progress",
                            "completed",
                            "failed",
                            "cancelled"
                        ]
                    },
                    {
                        "type": "string",
                        "description": "任务类型",
                        "name": "type",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "条数，0 表示不限",
                        "name": "limit",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "偏移",
                        "name": "offset",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/dto.TaskDetailsResponse"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/tasks/{task_id}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Tasks"
                ],
                "summary": "查询任务详情",
                "parameters": [
                    {
                        "type": "string",
                        "description": "任务 ID（UUID）",
                        "name": "task_id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskDetailsResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "Tasks"
                ],
                "summary": "取消任务",
                "parameters": [
                    {
                        "type": "string",
                        "description": "任务 ID（UUID）",
                        "name": "task_id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/tasks/{task_id}/await": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Tasks"
                ],
                "summary": "等待任务结束",
                "parameters": [
                    {
                        "type": "string",
                        "description": "任务 ID（UUID）",
                        "name": "task_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "等待时长，如 30s",
                        "name": "timeout",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.TaskDetailsResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "408": {
                        "description": "Request Timeout",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "details": {
                    "type": "string"
                },
                "error": {
                    "type": "string",
                    "example": "错误信息"
                }
            }
        },
        "dto.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                },
                "status": {
                    "type": "string",
                    "example": "ok"
                }
            }
        },
        "dto.MergeMailboxesRequest": {
            "type": "object",
            "required": [
                "mergeDestination",
                "mergeOrigin"
            ],
            "properties": {
                "mergeDestination": {
                    "type": "string",
                    "example": "2"
                },
                "mergeOrigin": {
                    "type": "string",
                    "example": "1"
                }
            }
        },
        "dto.SchemaUpgradeRequest": {
            "type": "object",
            "required": [
                "toVersion"
            ],
            "properties": {
                "toVersion": {
                    "type": "integer",
                    "minimum": 1,
                    "example": 2
                }
            }
        },
        "dto.TaskDetailsResponse": {
            "type": "object",
            "properties": {
                "additionalInformation": {
                    "type": "object"
                },
                "cancelledDate": {
                    "type": "string"
                },
                "completedDate": {
                    "type": "string"
                },
                "error": {
                    "type": "string"
                },
                "failedDate": {
                    "type": "string"
                },
                "startedDate": {
                    "type": "string"
                },
                "status": {
                    "type": "string",
                    "example": "completed"
                },
                "submitDate": {
                    "type": "string"
                },
                "taskId": {
                    "type": "string",
                    "example": "550e8400-e29b-41d4-a716-446655440000"
                },
                "type": {
                    "type": "string",
                    "example": "FullReIndexing"
                }
            }
        },
        "dto.TaskIDResponse": {
            "type": "object",
            "properties": {
                "taskId": {
                    "type": "string",
                    "example": "550e8400-e29b-41d4-a716-446655440000"
                }
            }
        },
        "vault.Criterion": {
            "type": "object",
            "properties": {
                "fieldName": {
                    "type": "string"
                },
                "operator": {
                    "type": "string"
                },
                "value": {
                    "type": "string"
                }
            }
        },
        "vault.Query": {
            "type": "object",
            "properties": {
                "combinator": {
                    "type": "string"
                },
                "criteria": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/vault.Criterion"
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:28080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Mail TaskHub API",
	Description:      "邮件服务器控制面：任务管理、死信重投、重建索引、邮箱合并、已删除邮件恢复与导出、邮件仓库重新处理",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
