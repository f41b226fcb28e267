package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_ExactlyLimitFitsInWindow(t *testing.T) {
	l := NewRateLimiter(3, time.Hour, 10, time.Hour)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.AllowMessage("s1"), "message %d should pass", i+1)
	}
	assert.False(t, l.AllowMessage("s1"))
	assert.False(t, l.AllowMessage("s1"))
}

func TestRateLimiter_WindowResets(t *testing.T) {
	l := NewRateLimiter(1, 20*time.Millisecond, 10, time.Hour)
	defer l.Stop()

	assert.True(t, l.AllowMessage("s1"))
	assert.False(t, l.AllowMessage("s1"))

	time.Sleep(25 * time.Millisecond)
	assert.True(t, l.AllowMessage("s1"))
}

func TestRateLimiter_SessionsAreIndependent(t *testing.T) {
	l := NewRateLimiter(1, time.Hour, 10, time.Hour)
	defer l.Stop()

	assert.True(t, l.AllowMessage("s1"))
	assert.False(t, l.AllowMessage("s1"))
	assert.True(t, l.AllowMessage("s2"))
}

func TestRateLimiter_AttemptsKeyedByHost(t *testing.T) {
	l := NewRateLimiter(10, time.Hour, 2, time.Hour)
	defer l.Stop()

	// different ports, same host, one shared window
	assert.True(t, l.AllowAttempt("10.0.0.1:1111"))
	assert.True(t, l.AllowAttempt("10.0.0.1:2222"))
	assert.False(t, l.AllowAttempt("10.0.0.1:3333"))

	assert.True(t, l.AllowAttempt("10.0.0.2:1111"))
}

func TestRateLimiter_ForgetClearsCounter(t *testing.T) {
	l := NewRateLimiter(1, time.Hour, 10, time.Hour)
	defer l.Stop()

	assert.True(t, l.AllowMessage("s1"))
	assert.False(t, l.AllowMessage("s1"))

	l.Forget("s1")
	assert.True(t, l.AllowMessage("s1"))
}

func TestRateLimiter_ZeroLimitRejectsEverything(t *testing.T) {
	l := NewRateLimiter(0, time.Hour, 0, time.Hour)
	defer l.Stop()

	assert.False(t, l.AllowMessage("s1"))
	assert.False(t, l.AllowAttempt("10.0.0.1:1111"))
}
