package redisx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "mailtaskhub:deadletter:groups", Key("deadletter", "groups"))
	assert.Equal(t, "mailtaskhub:deadletter:group:a", Key("deadletter", "group", "a"))
	assert.Equal(t, "mailtaskhub:x", Key("x"))
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "redis://localhost:6379/0", NormalizeURL("localhost:6379"))
	assert.Equal(t, "redis://localhost:6379/3", NormalizeURL("redis://localhost:6379/3"))
	assert.Equal(t, "rediss://cache:6380/0", NormalizeURL("rediss://cache:6380/0"))
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), "redis://:bad port")
	assert.Error(t, err)
}
