package tmi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatLimiter_NormalBurst(t *testing.T) {
	limiter := newChatLimiter(false)

	for i := 0; i < normalMessagesPerWindow; i++ {
		assert.True(t, limiter.Allow(), "message %d within the normal burst should be allowed", i)
	}
	assert.False(t, limiter.Allow(), "message beyond the normal burst should be throttled")
}

func TestNewChatLimiter_KnownBotBurst(t *testing.T) {
	limiter := newChatLimiter(true)

	for i := 0; i < knownMessagesPerWindow; i++ {
		assert.True(t, limiter.Allow(), "message %d within the known-bot burst should be allowed", i)
	}
	assert.False(t, limiter.Allow(), "message beyond the known-bot burst should be throttled")
}

func TestWaitSend_NilLimiterNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := waitSend(ctx, nil)
	require.NoError(t, err)
}

func TestWaitSend_AdmitsWithinBurst(t *testing.T) {
	limiter := newChatLimiter(false)
	ctx := context.Background()

	err := waitSend(ctx, limiter)
	require.NoError(t, err)
}

func TestWaitSend_CancelledContext(t *testing.T) {
	limiter := newChatLimiter(false)
	for i := 0; i < normalMessagesPerWindow; i++ {
		limiter.Allow()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitSend(ctx, limiter)
	assert.Error(t, err)
}
