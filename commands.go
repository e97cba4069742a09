package tmi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ensureNonce stamps a client-nonce tag onto an outgoing command's tags
// when the caller didn't supply one, so an echoed PRIVMSG can be
// deduplicated against the call that sent it.
func ensureNonce(tags map[string]string) map[string]string {
	if tags == nil {
		tags = make(map[string]string)
	}
	if _, ok := tags["client-nonce"]; !ok {
		tags["client-nonce"] = uuid.NewString()
	}
	return tags
}

func firstTags(tags []map[string]string) map[string]string {
	if len(tags) > 0 {
		return tags[0]
	}
	return nil
}

// Say sends a message to a channel, routing slash/dot-prefixed text to
// sendCommand the way Twitch's own chat box does, and /me (or .me) to
// Action.
func (c *Client) Say(ctx context.Context, channel, message string, tags ...map[string]string) error {
	channel = Channel(channel)

	if (strings.HasPrefix(message, ".") && !strings.HasPrefix(message, "..")) ||
		strings.HasPrefix(message, "/") || strings.HasPrefix(message, "\\") {
		if strings.HasPrefix(message, ".me ") || strings.HasPrefix(message, "/me ") {
			return c.Action(ctx, channel, message[4:], tags...)
		}
		return c.sendCommand(ctx, channel, message, firstTags(tags))
	}

	return c.sendMessage(ctx, channel, message, firstTags(tags))
}

// Action sends an action message (/me) to a channel.
func (c *Client) Action(ctx context.Context, channel, message string, tags ...map[string]string) error {
	wrapped := fmt.Sprintf("\x01ACTION %s\x01", message)
	return c.sendMessage(ctx, channel, wrapped, firstTags(tags))
}

// Join joins a channel and waits for Twitch's ROOMSTATE confirmation.
func (c *Client) Join(ctx context.Context, channel string) error {
	channel = Channel(channel)

	c.mu.Lock()
	c.state.lastJoinedSet[channel] = true
	c.mu.Unlock()

	_, err := c.awaitCommand(ctx, channel, "JOIN "+channel, []string{promiseTopic("Join", channel)})
	return err
}

// JoinMultiple joins one or more channels at once, aggregating a
// ROOMSTATE confirmation per channel. The deadline scales with the
// channel count since Twitch confirms them one at a time; the first
// channel to fail (or time out) fails the whole call, but every channel
// that does get confirmed stays joined.
func (c *Client) JoinMultiple(ctx context.Context, channels []string) error {
	if len(channels) == 0 {
		return nil
	}

	channels = ChannelAll(channels)

	c.mu.Lock()
	for _, ch := range channels {
		c.state.lastJoinedSet[ch] = true
	}
	c.mu.Unlock()

	if err := c.sendRaw(ctx, "JOIN "+strings.Join(channels, ",")); err != nil {
		return err
	}

	timeout := time.Duration(len(channels)) * c.promiseDelay()
	results := make(chan error, len(channels))

	for _, ch := range channels {
		channel := ch
		go func() {
			_, err := awaitTopics(ctx, c.EventEmitter, c.state.pending, channel,
				[]string{promiseTopic("Join", channel)}, timeout)
			results <- err
		}()
	}

	var firstErr error
	for range channels {
		if err := <-results; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Part leaves a channel.
func (c *Client) Part(ctx context.Context, channel string) error {
	channel = Channel(channel)
	_, err := c.awaitCommand(ctx, channel, "PART "+channel, []string{promiseTopic("Part", channel)})
	return err
}

// Ban bans a user from a channel.
func (c *Client) Ban(ctx context.Context, channel, username, reason string) error {
	username = Username(username)
	return c.runChannelCommand(ctx, channel, "Ban", fmt.Sprintf("/ban %s %s", username, reason))
}

// Timeout times out a user in a channel.
func (c *Client) Timeout(ctx context.Context, channel, username string, seconds int, reason string) error {
	username = Username(username)
	if seconds == 0 {
		seconds = 300
	}
	return c.runChannelCommand(ctx, channel, "Timeout", fmt.Sprintf("/timeout %s %d %s", username, seconds, reason))
}

// Unban unbans a user from a channel.
func (c *Client) Unban(ctx context.Context, channel, username string) error {
	username = Username(username)
	return c.runChannelCommand(ctx, channel, "Unban", "/unban "+username)
}

// Clear clears chat in a channel.
func (c *Client) Clear(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "Clear", "/clear")
}

// Color changes the client's username color.
func (c *Client) Color(ctx context.Context, newColor string) error {
	return c.runChannelCommand(ctx, c.state.globalDefaultChannel, "Color", "/color "+newColor)
}

// Commercial runs a commercial on a channel.
func (c *Client) Commercial(ctx context.Context, channel string, seconds int) error {
	if seconds == 0 {
		seconds = 30
	}
	return c.runChannelCommand(ctx, channel, "Commercial", fmt.Sprintf("/commercial %d", seconds))
}

// DeleteMessage deletes a specific message. Twitch doesn't confirm
// deletion with a NOTICE, so this just sends the command.
func (c *Client) DeleteMessage(ctx context.Context, channel, messageUUID string) error {
	return c.sendCommand(ctx, channel, "/delete "+messageUUID, nil)
}

// EmoteOnly enables emote-only mode in a channel.
func (c *Client) EmoteOnly(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "EmoteOnly", "/emoteonly")
}

// EmoteOnlyOff disables emote-only mode in a channel.
func (c *Client) EmoteOnlyOff(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "EmoteOnlyOff", "/emoteonlyoff")
}

// FollowersOnly enables followers-only mode in a channel.
func (c *Client) FollowersOnly(ctx context.Context, channel string, minutes int) error {
	if minutes == 0 {
		minutes = 30
	}
	return c.runChannelCommand(ctx, channel, "Followers", fmt.Sprintf("/followers %d", minutes))
}

// FollowersOnlyOff disables followers-only mode in a channel.
func (c *Client) FollowersOnlyOff(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "FollowersOff", "/followersoff")
}

// Host hosts another channel.
func (c *Client) Host(ctx context.Context, channel, target string) error {
	target = Username(target)
	return c.runChannelCommand(ctx, channel, "Host", "/host "+target)
}

// Unhost stops hosting.
func (c *Client) Unhost(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "Unhost", "/unhost")
}

// Mod gives mod status to a user.
func (c *Client) Mod(ctx context.Context, channel, username string) error {
	username = Username(username)
	return c.runChannelCommand(ctx, channel, "Mod", "/mod "+username)
}

// Unmod removes mod status from a user.
func (c *Client) Unmod(ctx context.Context, channel, username string) error {
	username = Username(username)
	return c.runChannelCommand(ctx, channel, "Unmod", "/unmod "+username)
}

// Mods returns the list of moderators in a channel.
func (c *Client) Mods(ctx context.Context, channel string) ([]string, error) {
	args, err := c.awaitChannelCommand(ctx, channel, "/mods", []string{promiseTopic("Mods", Channel(channel))})
	return namesFromArgs(args), err
}

// VIP gives VIP status to a user.
func (c *Client) VIP(ctx context.Context, channel, username string) error {
	username = Username(username)
	return c.runChannelCommand(ctx, channel, "Vip", "/vip "+username)
}

// Unvip removes VIP status from a user.
func (c *Client) Unvip(ctx context.Context, channel, username string) error {
	username = Username(username)
	return c.runChannelCommand(ctx, channel, "Unvip", "/unvip "+username)
}

// VIPs returns the list of VIPs in a channel.
func (c *Client) VIPs(ctx context.Context, channel string) ([]string, error) {
	args, err := c.awaitChannelCommand(ctx, channel, "/vips", []string{promiseTopic("VIPs", Channel(channel))})
	return namesFromArgs(args), err
}

func namesFromArgs(args []any) []string {
	if len(args) == 0 {
		return nil
	}
	if names, ok := args[0].([]string); ok {
		return names
	}
	return nil
}

// R9KBeta enables R9K (unique-chat) mode in a channel.
func (c *Client) R9KBeta(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "R9kOn", "/r9kbeta")
}

// R9KBetaOff disables R9K mode in a channel.
func (c *Client) R9KBetaOff(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "R9kOff", "/r9kbetaoff")
}

// Slow enables slow mode in a channel.
func (c *Client) Slow(ctx context.Context, channel string, seconds int) error {
	if seconds == 0 {
		seconds = 300
	}
	return c.runChannelCommand(ctx, channel, "Slow", fmt.Sprintf("/slow %d", seconds))
}

// SlowOff disables slow mode in a channel.
func (c *Client) SlowOff(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "SlowOff", "/slowoff")
}

// Subscribers enables subscribers-only mode in a channel.
func (c *Client) Subscribers(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "SubscribersOn", "/subscribers")
}

// SubscribersOff disables subscribers-only mode in a channel.
func (c *Client) SubscribersOff(ctx context.Context, channel string) error {
	return c.runChannelCommand(ctx, channel, "SubscribersOff", "/subscribersoff")
}

// Whisper sends a whisper to a user. Twitch answers a failed whisper with
// a NOTICE (whisper_limit_per_min, whisper_restricted_recipient, etc.);
// a successful one gets no confirmation at all, so a clean return here
// means "not rejected within the deadline", not "delivered" — callers that
// need stronger delivery confirmation have no protocol-level way to get it.
func (c *Client) Whisper(ctx context.Context, username, message string) error {
	username = Username(username)

	if username == c.GetUsername() {
		return errors.New("tmi: cannot send a whisper to the same account")
	}

	line := fmt.Sprintf("/w %s %s", username, message)
	_, err := c.awaitChannelCommand(ctx, c.state.globalDefaultChannel, line, []string{promiseTopic("Whisper", c.state.globalDefaultChannel)})
	if errors.Is(err, ErrTimeout) {
		return nil
	}
	return err
}

// Ping measures round-trip latency against the server, independent of the
// 60s background liveness loop.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	c.state.latency = time.Now()
	c.mu.Unlock()

	if err := c.writeRaw("PING"); err != nil {
		return err
	}

	_, err := awaitTopics(ctx, c.EventEmitter, c.state.pending, "", []string{promiseTopic("Ping", "")}, c.state.opts.Connection.Timeout)
	return err
}

// Raw sends a raw IRC command, bypassing correlation.
func (c *Client) Raw(ctx context.Context, command string, tags ...map[string]string) error {
	tagStr := ""
	if t := firstTags(tags); t != nil {
		if s := FormTags(t); s != "" {
			tagStr = s + " "
		}
	}
	c.state.log.Info(fmt.Sprintf("Executing command: %s", command))
	return c.sendRaw(ctx, tagStr+command)
}

// Announce sends a highlighted announcement message in a channel.
func (c *Client) Announce(ctx context.Context, channel, message string) error {
	return c.sendMessage(ctx, channel, "/announce "+message, nil)
}

// Reply sends a message as a threaded reply to another message.
func (c *Client) Reply(ctx context.Context, channel, message, replyParentMsgID string, tags ...map[string]string) error {
	tagMap := firstTags(tags)
	if tagMap == nil {
		tagMap = make(map[string]string)
	}

	if replyParentMsgID == "" {
		return errors.New("tmi: replyParentMsgID is required")
	}

	tagMap["reply-parent-msg-id"] = replyParentMsgID
	return c.Say(ctx, channel, message, tagMap)
}

// runChannelCommand is the shared path for every /command that Twitch
// confirms with a NOTICE: send it as a channel PRIVMSG, then race the
// corresponding promise topic.
func (c *Client) runChannelCommand(ctx context.Context, channel, promiseName, command string) error {
	channel = Channel(channel)
	_, err := c.awaitChannelCommand(ctx, channel, command, []string{promiseTopic(promiseName, channel)})
	return err
}

// awaitChannelCommand sends command as a PRIVMSG to channel (the way every
// /slash command reaches Twitch) and races topics against the default
// promise delay.
func (c *Client) awaitChannelCommand(ctx context.Context, channel, command string, topics []string) ([]any, error) {
	if err := c.sendCommand(ctx, channel, command, nil); err != nil {
		return nil, err
	}
	return awaitTopics(ctx, c.EventEmitter, c.state.pending, Channel(channel), topics, c.promiseDelay())
}

// sendMessage sends a chat message, splitting it across multiple PRIVMSGs
// if it exceeds Twitch's 500-byte limit. The continuation is sent from a
// 350ms time.AfterFunc timer instead of blocking the caller's goroutine on
// a sleep.
func (c *Client) sendMessage(ctx context.Context, channel, message string, tags map[string]string) error {
	if !c.isConnected() {
		return errors.New("tmi: not connected to server")
	}
	if IsJustinfan(c.GetUsername()) {
		return errors.New("tmi: cannot send anonymous messages")
	}

	channel = Channel(channel)
	tags = ensureNonce(tags)

	if len(message) <= 500 {
		return c.sendCommand(ctx, channel, message, tags)
	}

	firstPart := message[:500]
	lastSpace := strings.LastIndex(firstPart, " ")
	if lastSpace == -1 {
		lastSpace = 500
	}

	if err := c.sendCommand(ctx, channel, message[:lastSpace], tags); err != nil {
		return err
	}

	remainder := message[lastSpace:]
	time.AfterFunc(350*time.Millisecond, func() {
		if err := c.sendMessage(ctx, channel, remainder, nil); err != nil {
			c.state.log.Error(fmt.Sprintf("[%s] failed to send remainder of a split message: %v", channel, err))
		}
	})

	return nil
}

// sendCommand sends a PRIVMSG-shaped command (chat text or a /command) to
// a channel, or a bare raw line when channel is empty.
func (c *Client) sendCommand(ctx context.Context, channel, command string, tags map[string]string) error {
	if !c.isConnected() {
		return errors.New("tmi: not connected to server")
	}

	tagStr := ""
	if tags != nil {
		if s := FormTags(tags); s != "" {
			tagStr = s + " "
		}
	}

	channel = Channel(channel)
	if channel != "#" {
		c.state.log.Info(fmt.Sprintf("[%s] Executing command: %s", channel, command))
		return c.sendRaw(ctx, fmt.Sprintf("%sPRIVMSG %s :%s", tagStr, channel, command))
	}

	c.state.log.Info(fmt.Sprintf("Executing command: %s", command))
	return c.sendRaw(ctx, tagStr+command)
}

// Aliases matching tmi.js's naming history.

func (c *Client) FollowersMode(ctx context.Context, channel string, minutes int) error {
	return c.FollowersOnly(ctx, channel, minutes)
}

func (c *Client) FollowersModeOff(ctx context.Context, channel string) error {
	return c.FollowersOnlyOff(ctx, channel)
}

func (c *Client) Leave(ctx context.Context, channel string) error {
	return c.Part(ctx, channel)
}

func (c *Client) SlowMode(ctx context.Context, channel string, seconds int) error {
	return c.Slow(ctx, channel, seconds)
}

func (c *Client) SlowModeOff(ctx context.Context, channel string) error {
	return c.SlowOff(ctx, channel)
}

func (c *Client) R9KMode(ctx context.Context, channel string) error {
	return c.R9KBeta(ctx, channel)
}

func (c *Client) R9KModeOff(ctx context.Context, channel string) error {
	return c.R9KBetaOff(ctx, channel)
}

// UniqueChat is an alias for R9KBeta.
func (c *Client) UniqueChat(ctx context.Context, channel string) error {
	return c.R9KBeta(ctx, channel)
}

// UniqueChatOff is an alias for R9KBetaOff — NOT R9KBeta. tmi.js's alias
// of the same name points at R9KBeta (a long-standing bug there), so the
// one call named "off" re-enables the mode it claims to disable.
func (c *Client) UniqueChatOff(ctx context.Context, channel string) error {
	return c.R9KBetaOff(ctx, channel)
}
