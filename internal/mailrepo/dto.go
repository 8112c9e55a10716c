package mailrepo

import (
	"errors"

	"github.com/azhengyongqin/mail-taskhub/internal/serialization"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

type reprocessAllTaskDTO struct {
	RepositoryPath  string  `json:"repositoryPath"`
	TargetQueue     string  `json:"targetQueue"`
	TargetProcessor *string `json:"targetProcessor"`
}

type reprocessAllInformationDTO struct {
	RepositoryPath  string  `json:"repositoryPath"`
	TargetQueue     string  `json:"targetQueue"`
	TargetProcessor *string `json:"targetProcessor"`
	InitialCount    int64   `json:"initialCount"`
	RemainingCount  int64   `json:"remainingCount"`
}

type reprocessOneDTO struct {
	RepositoryPath  string  `json:"repositoryPath"`
	TargetQueue     string  `json:"targetQueue"`
	MailKey         string  `json:"mailKey"`
	TargetProcessor *string `json:"targetProcessor"`
}

type clearTaskDTO struct {
	RepositoryPath string `json:"repositoryPath"`
}

type clearInformationDTO struct {
	RepositoryPath string `json:"repositoryPath"`
	InitialCount   int64  `json:"initialCount"`
	RemainingCount int64  `json:"remainingCount"`
}

func processorPtr(t Target) *string {
	if t.Processor == "" {
		return nil
	}
	p := t.Processor
	return &p
}

func parseTarget(queue string, processor *string) (Target, error) {
	if queue == "" {
		return Target{}, errors.New("targetQueue is required")
	}
	t := Target{Queue: queue}
	if processor != nil {
		t.Processor = *processor
	}
	return t, nil
}

// Register 登记邮件仓库相关的三类任务及其快照
func Register(tasks *task.TaskRegistry, infos *task.AdditionalInformationRegistry, repo Repository, queue MailQueue) error {
	return errors.Join(
		serialization.RegisterDTO(tasks, ReprocessAllTaskType,
			func(x task.Task) (reprocessAllTaskDTO, error) {
				t := x.(*ReprocessAllTask)
				return reprocessAllTaskDTO{RepositoryPath: t.Path.String(), TargetQueue: t.Target.Queue, TargetProcessor: processorPtr(t.Target)}, nil
			},
			func(d reprocessAllTaskDTO) (task.Task, error) {
				path, err := ParsePath(d.RepositoryPath)
				if err != nil {
					return nil, err
				}
				target, err := parseTarget(d.TargetQueue, d.TargetProcessor)
				if err != nil {
					return nil, err
				}
				return NewReprocessAllTask(repo, queue, path, target), nil
			},
		),
		serialization.RegisterDTO(tasks, ReprocessOneTaskType,
			func(x task.Task) (reprocessOneDTO, error) {
				t := x.(*ReprocessOneTask)
				return reprocessOneDTO{RepositoryPath: t.Path.String(), TargetQueue: t.Target.Queue, MailKey: t.Key.String(), TargetProcessor: processorPtr(t.Target)}, nil
			},
			func(d reprocessOneDTO) (task.Task, error) {
				path, key, target, err := parseOne(d)
				if err != nil {
					return nil, err
				}
				return NewReprocessOneTask(repo, queue, path, key, target), nil
			},
		),
		serialization.RegisterDTO(tasks, ClearTaskType,
			func(x task.Task) (clearTaskDTO, error) {
				return clearTaskDTO{RepositoryPath: x.(*ClearTask).Path.String()}, nil
			},
			func(d clearTaskDTO) (task.Task, error) {
				path, err := ParsePath(d.RepositoryPath)
				if err != nil {
					return nil, err
				}
				return NewClearTask(repo, path), nil
			},
		),
		serialization.RegisterDTO(infos, ReprocessAllTaskType,
			func(x task.AdditionalInformation) (reprocessAllInformationDTO, error) {
				a := x.(*ReprocessAllInformation)
				return reprocessAllInformationDTO{
					RepositoryPath:  a.Path.String(),
					TargetQueue:     a.Target.Queue,
					TargetProcessor: processorPtr(a.Target),
					InitialCount:    a.InitialCount,
					RemainingCount:  a.RemainingCount,
				}, nil
			},
			func(d reprocessAllInformationDTO) (task.AdditionalInformation, error) {
				path, err := ParsePath(d.RepositoryPath)
				if err != nil {
					return nil, err
				}
				target, err := parseTarget(d.TargetQueue, d.TargetProcessor)
				if err != nil {
					return nil, err
				}
				return &ReprocessAllInformation{Path: path, Target: target, InitialCount: d.InitialCount, RemainingCount: d.RemainingCount}, nil
			},
		),
		serialization.RegisterDTO(infos, ReprocessOneTaskType,
			func(x task.AdditionalInformation) (reprocessOneDTO, error) {
				a := x.(*ReprocessOneInformation)
				return reprocessOneDTO{RepositoryPath: a.Path.String(), TargetQueue: a.Target.Queue, MailKey: a.Key.String(), TargetProcessor: processorPtr(a.Target)}, nil
			},
			func(d reprocessOneDTO) (task.AdditionalInformation, error) {
				path, key, target, err := parseOne(d)
				if err != nil {
					return nil, err
				}
				return &ReprocessOneInformation{Path: path, Key: key, Target: target}, nil
			},
		),
		serialization.RegisterDTO(infos, ClearTaskType,
			func(x task.AdditionalInformation) (clearInformationDTO, error) {
				a := x.(*ClearInformation)
				return clearInformationDTO{RepositoryPath: a.Path.String(), InitialCount: a.InitialCount, RemainingCount: a.RemainingCount}, nil
			},
			func(d clearInformationDTO) (task.AdditionalInformation, error) {
				path, err := ParsePath(d.RepositoryPath)
				if err != nil {
					return nil, err
				}
				return &ClearInformation{Path: path, InitialCount: d.InitialCount, RemainingCount: d.RemainingCount}, nil
			},
		),
	)
}

func parseOne(d reprocessOneDTO) (Path, Key, Target, error) {
	path, err := ParsePath(d.RepositoryPath)
	if err != nil {
		return "", "", Target{}, err
	}
	key, err := ParseKey(d.MailKey)
	if err != nil {
		return "", "", Target{}, err
	}
	target, err := parseTarget(d.TargetQueue, d.TargetProcessor)
	if err != nil {
		return "", "", Target{}, err
	}
	return path, key, target, nil
}
