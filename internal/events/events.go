// Package events 定义事件监听组、事件载荷与投递接口。
package events

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNoListener group 没有注册监听器
var ErrNoListener = errors.New("no listener registered for group")

var groupRegex = regexp.MustCompile(`^[a-zA-Z0-9_.$:-]{1,255}$`)

// Group 监听组标识，一个 group 对应一个监听器
type Group string

func (g Group) String() string { return string(g) }

// ParseGroup 校验外部传入的 group 名称
func ParseGroup(s string) (Group, error) {
	if !groupRegex.MatchString(s) {
		return "", fmt.Errorf("invalid group %q", s)
	}
	return Group(s), nil
}

// Event 不透明的事件载荷
type Event []byte

// Listener 某个 group 的事件处理器
type Listener interface {
	Handle(ctx context.Context, event Event) error
}

// ListenerFunc 函数适配 Listener
type ListenerFunc func(ctx context.Context, event Event) error

func (f ListenerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Dispatcher 把事件投递给指定 group；返回 nil 表示投递成功
type Dispatcher interface {
	Dispatch(ctx context.Context, group Group, event Event) error
}

// DispatcherFunc 函数适配 Dispatcher
type DispatcherFunc func(ctx context.Context, group Group, event Event) error

func (f DispatcherFunc) Dispatch(ctx context.Context, group Group, event Event) error {
	return f(ctx, group, event)
}
