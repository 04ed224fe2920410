package reconnect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	return Config{
		Enabled:        true,
		InitialDelayMs: 1000,
		MaxBackoffMs:   30000,
		MaxReconnects:  0,
	}
}

// TestNextBackoff_Sequence covers P7: 1000, 2000, 4000, 8000, 16000,
// 30000, 30000...
func TestNextBackoff_Sequence(t *testing.T) {
	c := New(defaultConfig())

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}

	for i, w := range want {
		got, retry := c.NextBackoff()
		require.True(t, retry, "attempt %d should permit retry", i)
		assert.Equal(t, w, got, "attempt %d backoff", i)
	}
	assert.Equal(t, len(want), c.AttemptsMade())
}

func TestNextBackoff_Disabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enabled = false
	c := New(cfg)

	_, retry := c.NextBackoff()
	assert.False(t, retry)
	assert.Equal(t, 0, c.AttemptsMade())
}

func TestNextBackoff_MaxReconnectsExhausted(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxReconnects = 2
	c := New(cfg)

	_, retry := c.NextBackoff()
	require.True(t, retry)
	_, retry = c.NextBackoff()
	require.True(t, retry)

	_, retry = c.NextBackoff()
	assert.False(t, retry, "third attempt should exceed max-reconnects")
	assert.Equal(t, 2, c.AttemptsMade())
}

func TestReset(t *testing.T) {
	c := New(defaultConfig())
	c.NextBackoff()
	c.NextBackoff()
	require.Equal(t, 2, c.AttemptsMade())

	c.Reset()
	assert.Equal(t, 0, c.AttemptsMade())

	got, retry := c.NextBackoff()
	require.True(t, retry)
	assert.Equal(t, 1000*time.Millisecond, got, "backoff restarts from initial delay after reset")
}
