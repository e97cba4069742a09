package tmi

import (
	"context"

	"golang.org/x/time/rate"
)

// Twitch's published chat limits: 20 commands/messages per 30 seconds for
// an unmoderated bot, 100 per 30 seconds for a known bot or a moderator in
// the target channel. See RateLimitKnownBot on Options.
const (
	normalMessagesPerWindow = 20
	knownMessagesPerWindow  = 100
	rateLimitWindowSeconds  = 30.0
)

// newChatLimiter builds a token-bucket limiter sized to one of Twitch's two
// published chat-message rate classes. The burst equals the per-window
// quota so a client that has been idle can still send a full window's
// worth of messages immediately, matching Twitch's own bucket behavior.
func newChatLimiter(knownBot bool) *rate.Limiter {
	n := normalMessagesPerWindow
	if knownBot {
		n = knownMessagesPerWindow
	}
	return rate.NewLimiter(rate.Limit(float64(n)/rateLimitWindowSeconds), n)
}

// waitSend blocks until the limiter admits one more outgoing message, or
// until ctx is done.
func waitSend(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
