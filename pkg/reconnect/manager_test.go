package reconnect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meridian/pkg/logger"
)

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{}, logger.Get())

	assert.Equal(t, 1*time.Second, m.minBackoff)
	assert.Equal(t, 5*time.Minute, m.maxBackoff)
	assert.Equal(t, 2.0, m.backoffMultiplier)
	assert.Equal(t, 10, m.maxRetries)
	assert.Equal(t, 60*time.Second, m.heartbeatTimeout)
	assert.Equal(t, 5*time.Minute, m.circuitResetAfter)
	assert.Equal(t, m.minBackoff, m.currentBackoff)
	assert.False(t, m.circuitOpen)
}

func TestManager_BackoffGrowsAndCaps(t *testing.T) {
	m := NewManager(Config{
		MinBackoff:        1 * time.Second,
		MaxBackoff:        4 * time.Second,
		BackoffMultiplier: 2.0,
		MaxRetries:        100,
	}, logger.Get())

	assert.Equal(t, 1*time.Second, m.GetBackoff())

	m.RecordFailure()
	assert.Equal(t, 2*time.Second, m.GetBackoff())

	m.RecordFailure()
	assert.Equal(t, 4*time.Second, m.GetBackoff())

	// Capped at MaxBackoff
	m.RecordFailure()
	assert.Equal(t, 4*time.Second, m.GetBackoff())
}

func TestManager_SuccessResetsBackoff(t *testing.T) {
	m := NewManager(Config{MaxRetries: 100}, logger.Get())

	m.RecordFailure()
	m.RecordFailure()
	assert.Equal(t, 2, m.GetStats().ConsecutiveFailures)

	m.RecordSuccess()

	stats := m.GetStats()
	assert.Equal(t, 0, stats.ConsecutiveFailures)
	assert.Equal(t, 1, stats.TotalReconnects)
	assert.Equal(t, m.minBackoff, stats.CurrentBackoff)
}

func TestManager_CircuitOpensAfterMaxRetries(t *testing.T) {
	m := NewManager(Config{
		MaxRetries:        3,
		CircuitResetAfter: 1 * time.Hour,
	}, logger.Get())

	m.RecordFailure()
	m.RecordFailure()
	assert.True(t, m.ShouldRetry())

	m.RecordFailure()

	assert.True(t, m.GetStats().CircuitOpen)
	assert.False(t, m.ShouldRetry())
	assert.False(t, m.IsHealthy())
}

func TestManager_CircuitAllowsRetryAfterReset(t *testing.T) {
	m := NewManager(Config{
		MaxRetries:        1,
		CircuitResetAfter: 10 * time.Millisecond,
	}, logger.Get())

	m.RecordFailure()
	assert.False(t, m.ShouldRetry())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, m.ShouldRetry())

	// A successful reconnect closes the circuit entirely
	m.RecordSuccess()
	stats := m.GetStats()
	assert.False(t, stats.CircuitOpen)
	assert.Equal(t, 0, stats.ConsecutiveFailures)
}

func TestManager_HeartbeatHealth(t *testing.T) {
	m := NewManager(Config{HeartbeatTimeout: 1 * time.Second}, logger.Get())

	// No messages yet counts as healthy, the connection just opened
	assert.True(t, m.IsHealthy())

	m.RecordMessageReceived()
	assert.True(t, m.IsHealthy())

	// Simulate prolonged silence
	m.lastMessageTime.Store(time.Now().Add(-2 * time.Second).Unix())
	assert.False(t, m.IsHealthy())
}
