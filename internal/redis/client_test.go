package redisclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
)

func TestClientOptionsCapTimeouts(t *testing.T) {
	opts := clientOptions(config.Config{RedisAddr: "cache:6379", RedisUsername: "sched", QueryTimeout: time.Minute})

	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "sched", opts.Username)
	assert.Equal(t, clientName, opts.ClientName)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)

	opts = clientOptions(config.Config{QueryTimeout: 500 * time.Millisecond})
	assert.Equal(t, 500*time.Millisecond, opts.WriteTimeout)
}

func TestLockKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "vaccine-scheduler:slot-lock:alice|2024-01-10", lockKey("alice|2024-01-10"))
}
