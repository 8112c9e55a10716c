package serialization

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateType 同一个注册表内重复注册类型标签
	ErrDuplicateType = errors.New("serialization: duplicate type")

	// ErrRegistrySealed 注册表已开始服务查询，不再接受注册
	ErrRegistrySealed = errors.New("serialization: registry sealed")
)

// UnknownTypeError 类型标签未注册（通常意味着版本或配置不一致）
type UnknownTypeError struct {
	Registry string
	Type     string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("serialization: unknown type %q in %s registry", e.Type, e.Registry)
}

// DeserializationError payload 非法，或引用的标识无法解析
type DeserializationError struct {
	Registry string
	Type     string
	Err      error
}

func (e *DeserializationError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("serialization: cannot deserialize %s payload: %v", e.Registry, e.Err)
	}
	return fmt.Sprintf("serialization: cannot deserialize %s payload of type %q: %v", e.Registry, e.Type, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// IsUnknownType 判断 err 是否为未知类型错误
func IsUnknownType(err error) bool {
	var target *UnknownTypeError
	return errors.As(err, &target)
}

// IsDeserialization 判断 err 是否为反序列化错误
func IsDeserialization(err error) bool {
	var target *DeserializationError
	return errors.As(err, &target)
}
