// Package serialization 提供按类型标签分派的 JSON 注册表。
//
// 每个领域（任务、任务附加信息）各自持有一个 Registry；新增类型只需注册一对
// 转换函数，不需要修改任何集中式的 switch。
package serialization

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// TypeField 判别字段名
const TypeField = "type"

// Typed 声明自身类型标签的领域对象
type Typed interface {
	Type() string
}

// Serializer 把领域对象转换成可被 encoding/json 编码的值（不含 type 字段）
type Serializer[T Typed] func(v T) (any, error)

// Deserializer 从完整 payload（含 type 字段）还原领域对象
type Deserializer[T Typed] func(payload []byte) (T, error)

type entry[T Typed] struct {
	serialize   Serializer[T]
	deserialize Deserializer[T]
}

// Registry 类型标签 -> 转换函数对。
// 约定：进程启动时完成注册，第一次查询后注册表即被封存。
type Registry[T Typed] struct {
	name    string
	mu      sync.RWMutex
	entries map[string]entry[T]
	sealed  atomic.Bool
}

// NewRegistry 创建注册表，name 仅用于错误信息
func NewRegistry[T Typed](name string) *Registry[T] {
	return &Registry[T]{
		name:    name,
		entries: map[string]entry[T]{},
	}
}

// Name 注册表名称
func (r *Registry[T]) Name() string { return r.name }

// Register 注册一个类型标签
func (r *Registry[T]) Register(tag string, serialize Serializer[T], deserialize Deserializer[T]) error {
	if tag == "" {
		return errors.New("serialization: empty type tag")
	}
	if serialize == nil || deserialize == nil {
		return fmt.Errorf("serialization: incomplete converters for %q", tag)
	}
	if r.sealed.Load() {
		return fmt.Errorf("%w: cannot register %q in %s registry", ErrRegistrySealed, tag, r.name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[tag]; exists {
		return fmt.Errorf("%w: %q in %s registry", ErrDuplicateType, tag, r.name)
	}
	r.entries[tag] = entry[T]{serialize: serialize, deserialize: deserialize}
	return nil
}

// MustRegister 同 Register，失败时 panic（仅用于进程启动阶段）
func (r *Registry[T]) MustRegister(tag string, serialize Serializer[T], deserialize Deserializer[T]) {
	if err := r.Register(tag, serialize, deserialize); err != nil {
		panic(err)
	}
}

// Types 已注册的类型标签（排序）
func (r *Registry[T]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for tag := range r.entries {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Serialize 输出 {"type": tag, ...fields}
func (r *Registry[T]) Serialize(v T) ([]byte, error) {
	tag := v.Type()
	e, ok := r.lookup(tag)
	if !ok {
		return nil, &UnknownTypeError{Registry: r.name, Type: tag}
	}

	dto, err := e.serialize(v)
	if err != nil {
		return nil, fmt.Errorf("serialize %q: %w", tag, err)
	}
	body, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("marshal %q: %w", tag, err)
	}

	fields := map[string]json.RawMessage{}
	if !bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("serialize %q: dto must encode to a JSON object: %w", tag, err)
		}
	}
	rawTag, _ := json.Marshal(tag)
	fields[TypeField] = rawTag

	return json.Marshal(fields)
}

// Deserialize 读取判别字段并分派到对应的反序列化函数
func (r *Registry[T]) Deserialize(payload []byte) (T, error) {
	var zero T

	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return zero, &DeserializationError{Registry: r.name, Err: err}
	}
	if head.Type == nil {
		return zero, &DeserializationError{Registry: r.name, Err: errors.New("missing type field")}
	}

	e, ok := r.lookup(*head.Type)
	if !ok {
		return zero, &UnknownTypeError{Registry: r.name, Type: *head.Type}
	}

	v, err := e.deserialize(payload)
	if err != nil {
		var de *DeserializationError
		if errors.As(err, &de) {
			return zero, err
		}
		return zero, &DeserializationError{Registry: r.name, Type: *head.Type, Err: err}
	}
	return v, nil
}

func (r *Registry[T]) lookup(tag string) (entry[T], bool) {
	r.sealed.Store(true)

	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[tag]
	return e, ok
}

// RegisterDTO 以 DTO 结构体注册类型：toDTO 负责编码方向，fromDTO 负责解码方向。
// DTO 不需要声明 type 字段。
func RegisterDTO[T Typed, D any](r *Registry[T], tag string, toDTO func(T) (D, error), fromDTO func(D) (T, error)) error {
	return r.Register(tag,
		func(v T) (any, error) {
			return toDTO(v)
		},
		func(payload []byte) (T, error) {
			var dto D
			if err := json.Unmarshal(payload, &dto); err != nil {
				var zero T
				return zero, err
			}
			return fromDTO(dto)
		},
	)
}
