package tmi

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// handleMessage normalizes a parsed IRC message's tags and dispatches it by
// prefix, mirroring how tmi.js routes "" (server-local), "tmi.twitch.tv",
// "jtv", and everything else (a user prefix) to different handlers.
func (c *Client) handleMessage(message *IRCMessage) {
	if message == nil {
		return
	}

	c.Emit("raw_message", message)

	channel := ""
	if len(message.Params) > 0 {
		channel = Channel(message.Params[0])
	}

	msg := ""
	if len(message.Params) > 1 {
		msg = message.Params[1]
	}

	msgid := ""
	if val, ok := message.Tags["msg-id"].(string); ok {
		msgid = val
	}

	message.Tags = ParseEmotes(ParseBadgeInfo(ParseBadges(message.Tags)))

	for key, value := range message.Tags {
		if key == "emote-sets" || key == "ban-duration" || key == "bits" {
			continue
		}

		switch v := value.(type) {
		case bool:
			if v {
				message.Tags[key] = nil
			}
		case string:
			switch v {
			case "1":
				message.Tags[key] = true
			case "0":
				message.Tags[key] = false
			default:
				message.Tags[key] = UnescapeIRC(v)
			}
		}
	}

	switch message.Prefix {
	case "":
		c.handleNoPrefixMessage(message)
	case "tmi.twitch.tv":
		c.handleTwitchMessage(message, channel, msg, msgid)
	case "jtv":
		c.handleJTVMessage(message, channel, msg)
	default:
		c.handleUserMessage(message, channel, msg)
	}
}

// handleNoPrefixMessage answers PING with PONG and turns a PONG reply into
// a latency sample.
func (c *Client) handleNoPrefixMessage(message *IRCMessage) {
	switch message.Command {
	case "PING":
		c.Emit("ping")
		_ = c.writeRaw("PONG")

	case "PONG":
		c.mu.Lock()
		c.state.currentLatency = time.Since(c.state.latency)
		latency := c.state.currentLatency
		if c.state.pingTimeout != nil {
			c.state.pingTimeout.Stop()
		}
		c.mu.Unlock()

		c.Emits([]string{"pong", promiseTopic("Ping", "")}, [][]any{
			{latency.Seconds()},
		})
	}
}

// handleTwitchMessage handles the tmi.twitch.tv-prefixed command stream:
// the numeric welcome sequence, NOTICE/USERNOTICE/CLEARCHAT/HOSTTARGET, and
// the USERSTATE/GLOBALUSERSTATE/ROOMSTATE state snapshots.
func (c *Client) handleTwitchMessage(message *IRCMessage, channel, msg, msgid string) {
	switch message.Command {
	case "001":
		if len(message.Params) > 0 {
			c.mu.Lock()
			c.state.username = message.Params[0]
			c.mu.Unlock()
		}

	case "376":
		c.handleWelcome()

	case "NOTICE":
		c.handleNotice(channel, msgid, msg)

	case "USERNOTICE":
		c.handleUserNotice(message, channel, msg, msgid)

	case "HOSTTARGET":
		c.handleHostTarget(channel, msg)

	case "CLEARCHAT":
		c.handleClearChat(message, channel, msg)

	case "CLEARMSG":
		if len(message.Params) > 1 {
			username := ""
			if val, ok := message.Tags["login"].(string); ok {
				username = val
			}
			message.Tags["message-type"] = "messagedeleted"
			c.state.log.Info(fmt.Sprintf("[%s] %s's message has been deleted.", channel, username))
			c.Emit("messagedeleted", channel, username, msg, message.Tags, convertToDeleteUserstate(message.Tags))
		}

	case "RECONNECT":
		c.mu.RLock()
		wait := c.state.reconnectTimer
		c.mu.RUnlock()

		c.state.log.Info("Received RECONNECT request from Twitch..")
		c.state.log.Info(fmt.Sprintf("Disconnecting and reconnecting in %v..", wait))
		_ = c.Disconnect()
		time.AfterFunc(wait, func() {
			_ = c.Connect(c.ctx)
		})

	case "USERSTATE":
		c.handleUserState(message, channel)

	case "GLOBALUSERSTATE":
		c.mu.Lock()
		c.state.globalUserState = convertToGlobalUserState(message.Tags)
		emotes := c.state.emotes
		if emoteSets, ok := message.Tags["emote-sets"].(string); ok && emoteSets != emotes {
			c.state.emotes = emoteSets
			emotes = emoteSets
			c.mu.Unlock()
			c.Emit("emotesets", emotes, nil)
		} else {
			c.mu.Unlock()
		}
		c.Emit("globaluserstate", message.Tags)

	case "ROOMSTATE":
		c.mu.Lock()
		pending := c.state.lastJoinedSet[channel]
		if pending {
			delete(c.state.lastJoinedSet, channel)
		}
		c.mu.Unlock()

		if pending {
			c.Emit(promiseTopic("Join", channel), nil, channel)
		}

		message.Tags["channel"] = channel
		c.Emit("roomstate", channel, message.Tags, convertToRoomState(message.Tags))

		c.handleRoomState(message, channel)
	}
}

// handleWelcome runs once per connection, right after Twitch's final
// welcome numeric: it resets reconnect backoff, arms the 60s ping
// liveness loop, and enqueues every configured/previously-joined channel
// onto the join rate-limit queue.
func (c *Client) handleWelcome() {
	c.mu.Lock()
	c.state.log.Info("Connected to server.")
	c.state.connState = stateOpenReady
	c.state.userState[c.state.globalDefaultChannel] = UserState{}
	server, port := c.state.server, c.state.port
	c.state.reconnections = 0
	c.state.reconnectTimer = c.state.reconnectInterval
	if c.state.pingLoop != nil {
		c.state.pingLoop.Stop()
	}
	c.state.pingLoop = time.NewTicker(60 * time.Second)
	pingLoop := c.state.pingLoop
	timeout := c.state.opts.Connection.Timeout

	joinChannels := append([]string{}, c.state.opts.Channels...)
	joinChannels = append(joinChannels, c.state.channels...)
	c.state.channels = []string{}

	joinInterval := time.Duration(c.state.opts.Options.JoinInterval) * time.Millisecond
	c.state.joinQ = NewQueue(joinInterval)
	queue := c.state.joinQ
	c.mu.Unlock()

	c.Emits([]string{"connected", promiseTopic("Connect", "")}, [][]any{
		{server, port},
		{nil},
	})

	go func() {
		for range pingLoop.C {
			c.mu.Lock()
			ws := c.state.ws
			c.state.latency = time.Now()
			c.mu.Unlock()

			if ws != nil {
				_ = c.writeRaw("PING")
			}

			c.mu.Lock()
			c.state.pingTimeout = time.AfterFunc(timeout, func() {
				c.mu.Lock()
				ws := c.state.ws
				c.mu.Unlock()
				if ws != nil {
					c.state.log.Error("Ping timeout.")
					_ = ws.Close()
				}
			})
			c.mu.Unlock()
		}
	}()

	seen := make(map[string]bool)
	for _, ch := range joinChannels {
		if seen[ch] {
			continue
		}
		seen[ch] = true

		channel := ch
		queue.Add(func() {
			if c.isConnected() {
				_ = c.Join(c.ctx, channel)
			}
		})
	}
	queue.Next()
}

func (c *Client) handleUserState(message *IRCMessage, channel string) {
	message.Tags["username"] = c.state.username

	c.mu.Lock()

	if userType, ok := message.Tags["user-type"].(string); ok && userType == "mod" {
		if c.state.moderators[channel] == nil {
			c.state.moderators[channel] = []string{}
		}
		if !slices.Contains(c.state.moderators[channel], c.state.username) {
			c.state.moderators[channel] = append(c.state.moderators[channel], c.state.username)
		}
	}

	_, alreadyJoined := c.state.userState[channel]
	isAnon := IsJustinfan(c.state.username)
	username := c.state.username

	if !alreadyJoined && !isAnon {
		userstate := convertToUserState(message.Tags)
		c.state.userState[channel] = userstate
		c.state.lastJoined = channel
		c.state.channels = append(c.state.channels, channel)
	}

	emotes := c.state.emotes
	emoteSets, hasEmoteSets := message.Tags["emote-sets"].(string)
	emoteSetsChanged := hasEmoteSets && emoteSets != emotes
	if emoteSetsChanged {
		c.state.emotes = emoteSets
	}

	c.state.userState[channel] = convertToUserState(message.Tags)

	c.mu.Unlock()

	if !alreadyJoined && !isAnon {
		c.state.log.Info(fmt.Sprintf("Joined %s", channel))
		c.Emit("join", channel, Username(username), true)
	}
	if emoteSetsChanged {
		c.Emit("emotesets", emoteSets, nil)
	}
}

func convertToUserState(tags map[string]any) UserState {
	userstate := UserState{}

	if val, ok := tags["color"].(string); ok {
		userstate.Color = val
	}
	if val, ok := tags["display-name"].(string); ok {
		userstate.DisplayName = val
	}
	if val, ok := tags["mod"].(bool); ok {
		userstate.Mod = val
	}
	if val, ok := tags["subscriber"].(bool); ok {
		userstate.Subscriber = val
	}
	if val, ok := tags["username"].(string); ok {
		userstate.Username = val
	}

	return userstate
}

func convertToGlobalUserState(tags map[string]any) GlobalUserState {
	globalUserState := GlobalUserState{}

	if val, ok := tags["color"].(string); ok {
		globalUserState.Color = val
	}
	if val, ok := tags["display-name"].(string); ok {
		globalUserState.DisplayName = val
	}
	if val, ok := tags["emote-sets"].(string); ok {
		globalUserState.EmoteSets = val
	}
	if val, ok := tags["user-id"].(string); ok {
		globalUserState.UserID = val
	}

	return globalUserState
}

// handleJTVMessage tracks +o/-o MODE changes from the legacy jtv prefix.
// The -o branch rebuilds the roster by filtering the username out rather
// than discarding the filtered result, so (unlike a once-common JS bug that
// threw away a non-mutating Array.filter's return value) a demodded user is
// actually removed here.
func (c *Client) handleJTVMessage(message *IRCMessage, channel, msg string) {
	if message.Command == "PRIVMSG" {
		c.handleJTVHosting(channel, msg)
		return
	}

	if message.Command != "MODE" || len(message.Params) < 3 {
		return
	}

	username := message.Params[2]

	c.mu.Lock()
	switch msg {
	case "+o":
		if c.state.moderators[channel] == nil {
			c.state.moderators[channel] = []string{}
		}
		if !slices.Contains(c.state.moderators[channel], username) {
			c.state.moderators[channel] = append(c.state.moderators[channel], username)
		}
	case "-o":
		if c.state.moderators[channel] != nil {
			newMods := make([]string, 0, len(c.state.moderators[channel]))
			for _, mod := range c.state.moderators[channel] {
				if mod != username {
					newMods = append(newMods, mod)
				}
			}
			c.state.moderators[channel] = newMods
		}
	}
	c.mu.Unlock()

	switch msg {
	case "+o":
		c.Emit("mod", channel, username)
	case "-o":
		c.Emit("unmod", channel, username)
	}
}

// handleJTVHosting turns the legacy jtv PRIVMSG Twitch still sends when
// another channel starts hosting this one ("X is now hosting you for up
// to N viewers.") into a "hosted" event. The viewer count is only present
// on some variants of the message, so it's best-effort.
func (c *Client) handleJTVHosting(channel, msg string) {
	if !strings.Contains(msg, "hosting you") {
		return
	}

	hoster := strings.TrimSpace(strings.SplitN(msg, " is now", 2)[0])

	viewers := 0
	autohost := strings.Contains(msg, "auto hosting")
	if idx := strings.Index(msg, "for up to "); idx != -1 {
		rest := strings.TrimSpace(msg[idx+len("for up to "):])
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			viewers = ParseInt(fields[0])
		}
	}

	c.state.log.Info(fmt.Sprintf("[%s] Now hosted by %s.", channel, hoster))
	c.Emit("hosted", channel, hoster, viewers, autohost)
}

// handleUserMessage handles messages from a user prefix: JOIN/PART/WHISPER,
// chat (PRIVMSG, including actions, cheers, and redemptions), and the 353
// NAMES reply.
func (c *Client) handleUserMessage(message *IRCMessage, channel, msg string) {
	switch message.Command {
	case "JOIN":
		nick, ok := prefixNick(message.Prefix)
		if !ok {
			return
		}

		c.mu.RLock()
		matchesUsername := c.state.username == nick
		c.mu.RUnlock()
		isSelfAnon := matchesUsername && IsJustinfan(nick)

		if isSelfAnon {
			c.mu.Lock()
			c.state.lastJoined = channel
			c.state.channels = append(c.state.channels, channel)
			c.mu.Unlock()
			c.state.log.Info(fmt.Sprintf("Joined %s", channel))
			c.Emit("join", channel, nick, true)
		} else if !matchesUsername {
			c.Emit("join", channel, nick, false)
		}

	case "PART":
		nick, ok := prefixNick(message.Prefix)
		if !ok {
			return
		}

		c.mu.Lock()
		isSelf := c.state.username == nick
		if isSelf {
			delete(c.state.userState, channel)

			newChannels := make([]string, 0, len(c.state.channels))
			for _, ch := range c.state.channels {
				if ch != channel {
					newChannels = append(newChannels, ch)
				}
			}
			c.state.channels = newChannels

			newOptsChannels := make([]string, 0, len(c.state.opts.Channels))
			for _, ch := range c.state.opts.Channels {
				if ch != channel {
					newOptsChannels = append(newOptsChannels, ch)
				}
			}
			c.state.opts.Channels = newOptsChannels
		}
		c.mu.Unlock()

		if isSelf {
			c.state.log.Info(fmt.Sprintf("Left %s", channel))
			c.Emit(promiseTopic("Part", channel), nil)
		}

		c.Emit("part", channel, nick, isSelf)

	case "WHISPER":
		nick, ok := prefixNick(message.Prefix)
		if !ok {
			return
		}
		c.state.log.Info(fmt.Sprintf("[WHISPER] <%s>: %s", nick, msg))

		message.Tags["username"] = nick
		message.Tags["message-type"] = "whisper"

		c.Emits([]string{"whisper", "message"}, [][]any{
			{Channel(nick), message.Tags, msg, false},
		})

	case "PRIVMSG":
		nick, ok := prefixNick(message.Prefix)
		if !ok {
			return
		}
		message.Tags["username"] = nick

		if isAction, actionMsg := IsActionMessage(msg); isAction {
			message.Tags["message-type"] = "action"
			c.state.log.Info(fmt.Sprintf("[%s] *<%s>: %s", channel, nick, actionMsg))
			c.Emits([]string{"action", "message"}, [][]any{
				{channel, message.Tags, actionMsg, false, convertToChatUserstate(message.Tags)},
			})
			return
		}

		message.Tags["message-type"] = "chat"

		if _, hasBits := message.Tags["bits"]; hasBits {
			c.Emit("cheer", channel, message.Tags, msg, convertToChatUserstate(message.Tags))
		} else if msgID, ok := message.Tags["msg-id"].(string); ok &&
			(msgID == "highlighted-message" || msgID == "skip-subs-mode-message") {
			c.Emit("redeem", channel, nick, msgID, message.Tags, msg)
		} else if rewardID, ok := message.Tags["custom-reward-id"].(string); ok {
			c.Emit("redeem", channel, nick, rewardID, message.Tags, msg)
		}

		c.state.log.Info(fmt.Sprintf("[%s] <%s>: %s", channel, nick, msg))
		c.Emits([]string{"chat", "message"}, [][]any{
			{channel, message.Tags, msg, false, convertToChatUserstate(message.Tags)},
		})

	case "353":
		if len(message.Params) >= 4 {
			names := strings.Split(message.Params[3], " ")
			c.Emit("names", message.Params[2], names)
		}
	}
}

func prefixNick(prefix string) (string, bool) {
	idx := strings.IndexByte(prefix, '!')
	if idx == -1 {
		if prefix == "" {
			return "", false
		}
		return prefix, true
	}
	return prefix[:idx], true
}

// handleRoomState turns ROOMSTATE tag transitions into both public
// notification events and the correlated promise resolutions that Slow,
// SlowOff, FollowersOnly, FollowersOnlyOff, R9KBeta, R9KBetaOff,
// Subscribers, and SubscribersOff wait on, since Twitch confirms all of
// these via ROOMSTATE rather than a NOTICE.
func (c *Client) handleRoomState(message *IRCMessage, channel string) {
	if slow, ok := message.Tags["slow"]; ok {
		if slowBool, isBool := slow.(bool); isBool && !slowBool {
			c.state.log.Info(fmt.Sprintf("[%s] This room is no longer in slow mode.", channel))
			c.Emits([]string{"slow", "slowmode", promiseTopic("SlowOff", channel)}, [][]any{
				{channel, false, 0},
				{channel, false, 0},
				{nil},
			})
		} else if slowStr, isStr := slow.(string); isStr {
			seconds := ParseInt(slowStr)
			c.state.log.Info(fmt.Sprintf("[%s] This room is now in slow mode.", channel))
			c.Emits([]string{"slow", "slowmode", promiseTopic("Slow", channel)}, [][]any{
				{channel, true, seconds},
				{channel, true, seconds},
				{nil},
			})
		}
	}

	if followers, ok := message.Tags["followers-only"]; ok {
		if followersStr, isStr := followers.(string); isStr {
			if followersStr == "-1" {
				c.state.log.Info(fmt.Sprintf("[%s] This room is no longer in followers-only mode.", channel))
				c.Emits([]string{"followersonly", "followersmode", promiseTopic("FollowersOff", channel)}, [][]any{
					{channel, false, 0},
					{channel, false, 0},
					{nil},
				})
			} else {
				minutes := ParseInt(followersStr)
				c.state.log.Info(fmt.Sprintf("[%s] This room is now in follower-only mode.", channel))
				c.Emits([]string{"followersonly", "followersmode", promiseTopic("Followers", channel)}, [][]any{
					{channel, true, minutes},
					{channel, true, minutes},
					{nil},
				})
			}
		}
	}

	if r9k, ok := message.Tags["r9k"].(bool); ok {
		if r9k {
			c.Emits([]string{"r9kbeta", promiseTopic("R9kOn", channel)}, [][]any{{channel}, {nil}})
		} else {
			c.Emits([]string{"r9kbetaoff", promiseTopic("R9kOff", channel)}, [][]any{{channel}, {nil}})
		}
	}

	if subsOnly, ok := message.Tags["subs-only"].(bool); ok {
		if subsOnly {
			c.Emits([]string{"subscribers", promiseTopic("SubscribersOn", channel)}, [][]any{{channel}, {nil}})
		} else {
			c.Emits([]string{"subscribersoff", promiseTopic("SubscribersOff", channel)}, [][]any{{channel}, {nil}})
		}
	}
}

// noticeOutcome describes what a NOTICE msg-id means for the correlated
// command waiting on it: which promise topic it targets, and whether it
// represents success or failure.
type noticeOutcome struct {
	promise string
	ok      bool
}

// noticeTable is the full msg-id correlation table: every row Twitch can
// send in response to a moderation/configuration command, mapped to the
// promise it resolves or rejects. Commands like R9KBeta/Subscribers/Slow
// that Twitch confirms via ROOMSTATE instead of NOTICE get their success
// from handleRoomState; only their failure msg-ids are listed here.
var noticeTable = map[MsgID]noticeOutcome{
	MsgIDBanSuccess:        {"Ban", true},
	MsgIDAlreadyBanned:     {"Ban", false},
	MsgIDBadBanAdmin:       {"Ban", false},
	MsgIDBadBanAnon:        {"Ban", false},
	MsgIDBadBanBroadcaster: {"Ban", false},
	MsgIDBadBanGlobalMod:   {"Ban", false},
	MsgIDBadBanMod:         {"Ban", false},
	MsgIDBadBanSelf:        {"Ban", false},
	MsgIDBadBanStaff:       {"Ban", false},
	MsgIDUsageBan:          {"Ban", false},

	MsgIDUnbanSuccess:  {"Unban", true},
	MsgIDBadUnbanNoBan: {"Unban", false},
	MsgIDUsageUnban:    {"Unban", false},

	MsgIDTimeoutSuccess:      {"Timeout", true},
	MsgIDBadTimeoutAdmin:     {"Timeout", false},
	MsgIDBadTimeoutAnon:      {"Timeout", false},
	MsgIDBadTimeoutGlobalMod: {"Timeout", false},
	MsgIDBadTimeoutMod:       {"Timeout", false},
	MsgIDBadTimeoutSelf:      {"Timeout", false},
	MsgIDBadTimeoutStaff:     {"Timeout", false},
	MsgIDUsageTimeout:        {"Timeout", false},

	MsgIDModSuccess:   {"Mod", true},
	MsgIDBadModMod:    {"Mod", false},
	MsgIDBadModBanned: {"Mod", false},
	MsgIDUsageMod:     {"Mod", false},

	MsgIDUnmodSuccess: {"Unmod", true},
	MsgIDBadUnmodMod:  {"Unmod", false},
	MsgIDUsageUnmod:   {"Unmod", false},

	MsgIDColorChanged: {"Color", true},
	MsgIDUsageColor:   {"Color", false},

	MsgIDCommercialSuccess:  {"Commercial", true},
	MsgIDBadCommercialError: {"Commercial", false},
	MsgIDUsageCommercial:    {"Commercial", false},

	MsgIDEmoteOnlyOn:        {"EmoteOnly", true},
	MsgIDAlreadyEmoteOnlyOn: {"EmoteOnly", false},
	MsgIDUsageEmoteOnlyOn:   {"EmoteOnly", false},

	MsgIDEmoteOnlyOff:        {"EmoteOnlyOff", true},
	MsgIDAlreadyEmoteOnlyOff: {"EmoteOnlyOff", false},
	MsgIDUsageEmoteOnlyOff:   {"EmoteOnlyOff", false},

	MsgIDHostsRemaining:      {"Host", true},
	MsgIDBadHostHosting:      {"Host", false},
	MsgIDBadHostRateExceeded: {"Host", false},
	MsgIDUsageHost:           {"Host", false},

	MsgIDNotHosting:  {"Unhost", false},
	MsgIDUsageUnhost: {"Unhost", false},

	MsgIDAlreadySubsOn:  {"SubscribersOn", false},
	MsgIDUsageSubsOn:    {"SubscribersOn", false},
	MsgIDAlreadySubsOff: {"SubscribersOff", false},
	MsgIDUsageSubsOff:   {"SubscribersOff", false},

	MsgIDUsageR9kOn:  {"R9kOn", false},
	MsgIDUsageR9kOff: {"R9kOff", false},

	MsgIDUsageSlowOn:  {"Slow", false},
	MsgIDUsageSlowOff: {"SlowOff", false},

	MsgIDWhisperInvalidSelf:     {"Whisper", false},
	MsgIDWhisperLimitPerMin:     {"Whisper", false},
	MsgIDWhisperLimitPerSec:     {"Whisper", false},
	MsgIDWhisperRestrictedRecip: {"Whisper", false},

	MsgIDUsageMe: {"Action", false},

	MsgIDVipSuccess:    {"Vip", true},
	MsgIDAlreadyVip:    {"Vip", false},
	MsgIDBadVipGrantee: {"Vip", false},
	MsgIDUsageVip:      {"Vip", false},

	MsgIDUnvipSuccess:    {"Unvip", true},
	MsgIDBadUnvipGrantee: {"Unvip", false},
	MsgIDUsageUnvip:      {"Unvip", false},

	MsgIDUsageClear: {"Clear", false},
}

// permissionClassMsgIDs reject every command outstanding against the
// implicated channel, since none of them identify which command they're
// answering — Twitch just refuses to process anything further there.
var permissionClassMsgIDs = map[MsgID]bool{
	MsgIDNoPermission:        true,
	MsgIDMsgBanned:           true,
	MsgIDMsgRoomNotFound:     true,
	MsgIDMsgChannelSuspended: true,
	MsgIDTosBan:              true,
	MsgIDInvalidUser:         true,
}

// handleNotice resolves or rejects correlated commands from a NOTICE's
// msg-id, falls back to substring matching for the msg-id-less /mods and
// /vips list replies, and always emits the generic "notice" event so a
// caller can observe anything not explicitly modeled.
func (c *Client) handleNotice(channel, msgid, msg string) {
	c.state.log.Info(fmt.Sprintf("[%s] %s", channel, msg))
	c.Emit("notice", channel, msgid, msg)

	if isHandshakeFailure(msg) {
		c.failHandshake(msg)
		return
	}

	if permissionClassMsgIDs[MsgID(msgid)] {
		c.state.pending.rejectChannel(channel, &CommandError{MsgID: MsgID(msgid), Message: msg})
		return
	}

	if outcome, known := noticeTable[MsgID(msgid)]; known {
		topic := promiseTopic(outcome.promise, channel)
		if outcome.ok {
			c.Emit(topic, msg)
		} else {
			c.rejectPromise(topic, channel, &CommandError{MsgID: MsgID(msgid), Message: msg})
		}
		return
	}

	if msgid == "" {
		switch {
		case strings.Contains(msg, "moderators of this channel"):
			c.Emit(promiseTopic("Mods", channel), extractNameList(msg))
		case strings.Contains(msg, "VIPs of this channel"):
			c.Emit(promiseTopic("VIPs", channel), extractNameList(msg))
		case strings.Contains(msg, "This room is not in slow mode"):
			c.Emit(promiseTopic("SlowOff", channel), nil)
		}
	}
}

// rejectPromise signals a command failure to whichever awaitTopics call is
// listening on topic, without disturbing any other command pending against
// the same channel. There's no per-topic reject primitive on EventEmitter
// (Emit always "succeeds" a listener), so this resolves through pendingOps
// directly instead of emitting.
func (c *Client) rejectPromise(topic, channel string, err error) {
	_ = channel
	c.state.pending.rejectTopic(topic, err)
}

// extractNameList pulls the comma-separated name list out of a /mods or
// /vips NOTICE body ("The moderators of this channel are: a, b, c").
func extractNameList(msg string) []string {
	idx := strings.LastIndex(msg, ":")
	if idx == -1 {
		return nil
	}
	rest := strings.TrimSpace(msg[idx+1:])
	if rest == "" {
		return []string{}
	}
	parts := strings.Split(rest, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, strings.TrimSpace(p))
	}
	return names
}

// handleUserNotice processes USERNOTICE messages for subs, raids, and
// similar community events.
func (c *Client) handleUserNotice(message *IRCMessage, channel, msg, msgid string) {
	username := ""
	if val, ok := message.Tags["display-name"].(string); ok {
		username = val
	} else if val, ok := message.Tags["login"].(string); ok {
		username = val
	}

	message.Tags["message-type"] = msgid

	switch msgid {
	case "sub":
		c.Emits([]string{"subscription", "sub"}, [][]any{
			{channel, username, message.Tags, msg, convertToSubUserstate(message.Tags), convertToSubMethods(message.Tags)},
		})

	case "resub":
		streakMonths := 0
		if val, ok := message.Tags["msg-param-streak-months"].(string); ok {
			streakMonths = ParseInt(val)
		}
		c.Emits([]string{"resub", "subanniversary"}, [][]any{
			{channel, username, streakMonths, msg, message.Tags, convertToSubUserstate(message.Tags)},
		})

	case "subgift":
		recipient := ""
		if val, ok := message.Tags["msg-param-recipient-display-name"].(string); ok {
			recipient = val
		}
		c.Emit("subgift", channel, username, recipient, message.Tags, convertToSubGiftUserstate(message.Tags))

	case "submysterygift":
		c.Emit("submysterygift", channel, username, message.Tags, convertToSubMysteryGiftUserstate(message.Tags))

	case "anonsubgift":
		recipient := ""
		if val, ok := message.Tags["msg-param-recipient-display-name"].(string); ok {
			recipient = val
		}
		c.Emit("anonsubgift", channel, recipient, message.Tags, convertToAnonSubGiftUserstate(message.Tags))

	case "anonsubmysterygift":
		c.Emit("anonsubmysterygift", channel, message.Tags, convertToAnonSubMysteryGiftUserstate(message.Tags))

	case "primepaidupgrade":
		c.Emit("primepaidupgrade", channel, username, message.Tags, convertToPrimeUpgradeUserstate(message.Tags))

	case "giftpaidupgrade":
		senderName := ""
		if val, ok := message.Tags["msg-param-sender-login"].(string); ok {
			senderName = val
		}
		c.Emit("giftpaidupgrade", channel, username, senderName, message.Tags, convertToSubGiftUpgradeUserstate(message.Tags))

	case "anongiftpaidupgrade":
		c.Emit("anongiftpaidupgrade", channel, username, message.Tags, convertToAnonSubGiftUpgradeUserstate(message.Tags))

	case "raid":
		viewers := 0
		if val, ok := message.Tags["msg-param-viewerCount"].(string); ok {
			viewers = ParseInt(val)
		}
		c.Emit("raided", channel, username, viewers, message.Tags, convertToRaidUserstate(message.Tags))

	case "ritual":
		ritual := ""
		if val, ok := message.Tags["msg-param-ritual-name"].(string); ok {
			ritual = val
		}
		if ritual == "new_chatter" {
			c.Emit("newchatter", channel, message.Tags, msg, convertToRitualUserstate(message.Tags))
		}

	case "announcement":
		color := ""
		if val, ok := message.Tags["msg-param-color"].(string); ok {
			color = val
		}
		c.Emit("announcement", channel, message.Tags, msg, false, color)

	default:
		c.Emit("usernotice", msgid, channel, message.Tags, msg)
	}
}

// handleHostTarget processes the host/unhost HOSTTARGET command.
func (c *Client) handleHostTarget(channel, msg string) {
	parts := strings.Split(msg, " ")
	if len(parts) < 1 {
		return
	}

	viewers := 0
	if len(parts) > 1 {
		viewers = ParseInt(parts[1])
	}

	if parts[0] == "-" {
		c.state.log.Info(fmt.Sprintf("[%s] Exited host mode.", channel))
		c.Emits([]string{"unhost", promiseTopic("Unhost", channel)}, [][]any{
			{channel, viewers},
			{nil},
		})
	} else {
		c.state.log.Info(fmt.Sprintf("[%s] Now hosting %s for %d viewer(s).", channel, parts[0], viewers))
		c.Emit("hosting", channel, parts[0], viewers)
	}
}

// handleClearChat processes CLEARCHAT: a targeted ban/timeout, or (with no
// target) a full chat clear.
func (c *Client) handleClearChat(message *IRCMessage, channel, msg string) {
	if len(message.Params) > 1 {
		duration := ""
		if val, ok := message.Tags["ban-duration"].(string); ok {
			duration = val
		}

		if duration == "" {
			c.state.log.Info(fmt.Sprintf("[%s] %s has been banned.", channel, msg))
			c.Emit("ban", channel, msg, nil, message.Tags, convertToBanUserstate(message.Tags))
		} else {
			durationInt, _ := strconv.Atoi(duration)
			c.state.log.Info(fmt.Sprintf("[%s] %s has been timed out for %d seconds.", channel, msg, durationInt))
			c.Emit("timeout", channel, msg, nil, durationInt, message.Tags, convertToTimeoutUserstate(message.Tags))
		}
	} else {
		c.state.log.Info(fmt.Sprintf("[%s] Chat was cleared by a moderator.", channel))
		c.Emits([]string{"clearchat", promiseTopic("Clear", channel)}, [][]any{
			{channel},
			{nil},
		})
	}
}
