package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
	"github.com/azhengyongqin/mail-taskhub/sdk"
)

const paramServer = "server"

// taskctl 控制面命令行客户端
func main() {
	_ = logger.Init(false)
	if err := loadEnvFile(); err != nil {
		logger.Warn().Err(err).Msg("无法加载 .env 文件，将使用环境变量或默认值")
	}

	app := &cli.App{
		Name:  "taskctl",
		Usage: "mail-taskhub 任务控制命令行",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    paramServer,
				Aliases: []string{"s"},
				EnvVars: []string{"TASKHUB_URL"},
				Value:   "http://127.0.0.1:28080",
				Usage:   "控制面地址",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
				Usage:   "日志级别",
			},
		},
		Before: func(ctx *cli.Context) error {
			logger.SetLevel(ctx.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			taskCommand(),
			deadLetterCommand(),
			reindexCommand(),
			mailRepositoryCommand(),
			schemaCommand(),
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("命令执行失败")
		os.Exit(1)
	}
}

func client(ctx *cli.Context) *sdk.Client {
	return sdk.NewClient(ctx.String(paramServer))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSubmitted 打印 taskId；--wait 时等待任务结束并打印详情
func printSubmitted(ctx *cli.Context, taskID string) error {
	if !ctx.Bool("wait") {
		fmt.Println(taskID)
		return nil
	}
	t, err := client(ctx).AwaitTask(ctx.Context, taskID, ctx.Duration("timeout"))
	if err != nil {
		return err
	}
	return printJSON(t)
}

var submitFlags = []cli.Flag{
	&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "等待任务结束"},
	&cli.DurationFlag{Name: "timeout", Value: time.Minute, Usage: "--wait 的最长等待时间"},
}

func taskCommand() *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "查询与取消任务",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				ArgsUsage: "<task-id>",
				Action: func(ctx *cli.Context) error {
					t, err := client(ctx).GetTask(ctx.Context, ctx.Args().First())
					if err != nil {
						return err
					}
					return printJSON(t)
				},
			},
			{
				Name:  "list",
				Flags: []cli.Flag{&cli.StringFlag{Name: "status", Usage: "waiting|in-progress|completed|failed|cancelled"}},
				Action: func(ctx *cli.Context) error {
					tasks, err := client(ctx).ListTasks(ctx.Context, ctx.String("status"))
					if err != nil {
						return err
					}
					return printJSON(tasks)
				},
			},
			{
				Name:      "await",
				ArgsUsage: "<task-id>",
				Flags:     []cli.Flag{&cli.DurationFlag{Name: "timeout", Value: time.Minute}},
				Action: func(ctx *cli.Context) error {
					t, err := client(ctx).AwaitTask(ctx.Context, ctx.Args().First(), ctx.Duration("timeout"))
					if err != nil {
						return err
					}
					return printJSON(t)
				},
			},
			{
				Name:      "cancel",
				ArgsUsage: "<task-id>",
				Action: func(ctx *cli.Context) error {
					return client(ctx).CancelTask(ctx.Context, ctx.Args().First())
				},
			},
		},
	}
}

func deadLetterCommand() *cli.Command {
	return &cli.Command{
		Name:  "deadletter",
		Usage: "查看与重投死信",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				ArgsUsage: "[group]",
				Action: func(ctx *cli.Context) error {
					c := client(ctx)
					if group := ctx.Args().First(); group != "" {
						ids, err := c.ListDeadLetters(ctx.Context, group)
						if err != nil {
							return err
						}
						return printJSON(ids)
					}
					groups, err := c.ListDeadLetterGroups(ctx.Context)
					if err != nil {
						return err
					}
					return printJSON(groups)
				},
			},
			{
				Name:      "redeliver",
				ArgsUsage: "[group [insertion-id]]",
				Flags:     submitFlags,
				Action: func(ctx *cli.Context) error {
					id, err := client(ctx).Redeliver(ctx.Context, ctx.Args().Get(0), ctx.Args().Get(1))
					if err != nil {
						return err
					}
					return printSubmitted(ctx, id)
				},
			},
		},
	}
}

func reindexCommand() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "重建检索索引",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "只处理该用户的邮箱"},
			&cli.StringFlag{Name: "failures-of", Usage: "重试该任务失败的邮件"},
		}, submitFlags...),
		Action: func(ctx *cli.Context) error {
			c := client(ctx)
			var (
				id  string
				err error
			)
			if prev := ctx.String("failures-of"); prev != "" {
				id, err = c.ReIndexFailures(ctx.Context, prev)
			} else {
				id, err = c.ReIndex(ctx.Context, ctx.String("user"))
			}
			if err != nil {
				return err
			}
			return printSubmitted(ctx, id)
		},
	}
}

func mailRepositoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "reprocess",
		Usage:     "将邮件仓库中的邮件重新投入处理队列",
		ArgsUsage: "<repository-path>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "queue", Value: "spool"},
		}, submitFlags...),
		Action: func(ctx *cli.Context) error {
			id, err := client(ctx).ReprocessMailRepository(ctx.Context, ctx.Args().First(), ctx.String("queue"))
			if err != nil {
				return err
			}
			return printSubmitted(ctx, id)
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "升级数据库结构",
		Flags: append([]cli.Flag{
			&cli.Int64Flag{Name: "to", Required: true, Usage: "目标版本"},
		}, submitFlags...),
		Action: func(ctx *cli.Context) error {
			id, err := client(ctx).UpgradeSchema(ctx.Context, ctx.Int64("to"))
			if err != nil {
				return err
			}
			return printSubmitted(ctx, id)
		},
	}
}

// loadEnvFile 从当前目录向上查找 .env
func loadEnvFile() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	for _, path := range []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	} {
		if _, err := os.Stat(path); err == nil {
			return godotenv.Load(path)
		}
	}
	return nil
}
