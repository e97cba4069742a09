package tmi

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a Twitch IRC client: the connection core, the
// embedded event bus, and the correlation/rate-limiting state that sit
// between them.
type Client struct {
	*EventEmitter
	state  *clientState
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// NewClient creates a new Twitch IRC client. A zero-value opts (or any
// unset field within it) gets tmi.js-compatible defaults.
func NewClient(opts *ClientOptions) *Client {
	if opts == nil {
		opts = &ClientOptions{}
	}

	if opts.Options == nil {
		opts.Options = &Options{}
	}
	if opts.Connection == nil {
		opts.Connection = &Connection{}
	}
	if opts.Identity == nil {
		opts.Identity = &Identity{}
	}
	if opts.Channels == nil {
		opts.Channels = []string{}
	}

	if opts.Options.GlobalDefaultChannel == "" {
		opts.Options.GlobalDefaultChannel = "#tmijs"
	}
	if opts.Options.JoinInterval == 0 {
		opts.Options.JoinInterval = 2000
	}
	if opts.Options.JoinInterval < 300 {
		opts.Options.JoinInterval = 300
	}
	if opts.Options.MessagesLogLevel == "" {
		opts.Options.MessagesLogLevel = "info"
	}

	if opts.Connection.Server == "" {
		opts.Connection.Server = "irc-ws.chat.twitch.tv"
	}
	if opts.Connection.Port == 0 {
		opts.Connection.Port = 80
	}
	if opts.Connection.Secure {
		opts.Connection.Port = 443
	}
	if opts.Connection.Port == 443 {
		opts.Connection.Secure = true
	}
	if opts.Connection.ReconnectInterval == 0 {
		opts.Connection.ReconnectInterval = 1 * time.Second
	}
	if opts.Connection.ReconnectDecay == 0 {
		opts.Connection.ReconnectDecay = 1.5
	}
	if opts.Connection.MaxReconnectInterval == 0 {
		opts.Connection.MaxReconnectInterval = 30 * time.Second
	}
	if opts.Connection.MaxReconnectAttempts == 0 {
		opts.Connection.MaxReconnectAttempts = 999999 // effectively infinite
	}
	if opts.Connection.Timeout == 0 {
		opts.Connection.Timeout = 9999 * time.Millisecond
	}
	opts.Connection.Reconnect = true

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger()
	}
	if opts.Options.Debug {
		logger.SetLevel("info")
	} else {
		logger.SetLevel("error")
	}

	for i, ch := range opts.Channels {
		opts.Channels[i] = Channel(ch)
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = NewWebsocketDialer(opts.Connection.ProxyAddress, opts.Connection.InsecureSkipVerify)
	}

	ctx, cancel := context.WithCancel(context.Background())

	state := &clientState{
		connState:            stateClosed,
		dialer:               dialer,
		opts:                 opts,
		globalDefaultChannel: Channel(opts.Options.GlobalDefaultChannel),
		skipMembership:       opts.Options.SkipMembership,
		server:               opts.Connection.Server,
		port:                 opts.Connection.Port,
		secure:               opts.Connection.Secure,
		reconnect:            opts.Connection.Reconnect,
		reconnectDecay:       opts.Connection.ReconnectDecay,
		reconnectInterval:    opts.Connection.ReconnectInterval,
		maxReconnectInterval: opts.Connection.MaxReconnectInterval,
		maxReconnectAttempts: opts.Connection.MaxReconnectAttempts,
		reconnectTimer:       opts.Connection.ReconnectInterval,
		reconnecting:         false,
		reconnections:        0,
		username:             Username(opts.Identity.Username),
		channels:             []string{},
		emotes:               "",
		emotesets:            make(map[string]any),
		globalUserState:      GlobalUserState{},
		userState:            make(map[string]UserState),
		lastJoinedSet:        make(map[string]bool),
		moderators:           make(map[string][]string),
		log:                  logger,
		currentLatency:       0,
		latency:              time.Now(),
		wasCloseCalled:       false,
		limiter:              newChatLimiter(opts.Options.RateLimitKnownBot),
		pending:              newPendingOps(),
	}

	if state.username == "" {
		state.username = Justinfan()
	}

	client := &Client{
		EventEmitter: NewEventEmitter(),
		state:        state,
		ctx:          ctx,
		cancel:       cancel,
	}

	client.SetMaxListeners(0)

	return client
}

// Connect establishes a connection to the Twitch IRC server and blocks
// until the CAP/PASS/NICK handshake completes (numeric 376, the final
// welcome line) or fails (an authentication-failure NOTICE, a dial error,
// ctx being done, or the handshake simply timing out), whichever comes
// first. Reconnects triggered internally after a drop run against c.ctx,
// not the ctx passed here.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.state.reconnecting = false
	c.state.connState = stateConnecting
	c.mu.Unlock()

	if err := c.openConnection(ctx); err != nil {
		c.mu.Lock()
		c.state.connState = stateClosed
		c.mu.Unlock()
		return err
	}

	timeout := c.state.opts.Connection.Timeout
	_, err := awaitTopics(ctx, c.EventEmitter, c.state.pending, "", []string{promiseTopic("Connect", "")}, timeout)
	if err != nil {
		c.mu.RLock()
		ws := c.state.ws
		c.mu.RUnlock()
		if ws != nil {
			_ = ws.Close()
		}
		return err
	}

	return nil
}

// openConnection dials, starts the read loop, and authenticates. It does
// NOT touch reconnectTimer — that only grows when handleError schedules an
// actual retry, so a Connect that succeeds leaves the backoff untouched and
// the first retry after a drop waits ReconnectInterval * ReconnectDecay
// (capped at MaxReconnectInterval). It returns once the handshake has been written to the
// wire, not once Twitch has acknowledged it — callers that need to wait
// for the welcome (or an auth failure) use Connect, not this directly.
func (c *Client) openConnection(ctx context.Context) error {
	c.mu.Lock()
	protocol := "ws"
	if c.state.secure {
		protocol = "wss"
	}
	url := fmt.Sprintf("%s://%s:%d/", protocol, c.state.server, c.state.port)
	dialer := c.state.dialer
	server, port := c.state.server, c.state.port
	c.mu.Unlock()

	c.state.log.Info(fmt.Sprintf("Connecting to %s on port %d..", server, port))
	c.Emit("connecting", server, port)

	ws, err := dialer.Dial(ctx, url)
	if err != nil {
		c.state.log.Error(fmt.Sprintf("Connection error: %v", err))
		return err
	}

	c.mu.Lock()
	c.state.ws = ws
	c.state.wasCloseCalled = false
	c.state.connState = stateOpenHandshaking
	c.mu.Unlock()

	go c.handleMessages()

	return c.authenticate(ctx)
}

// authenticate sends the CAP/PASS/NICK handshake. Twitch responds with 001
// then (once membership/tags/commands caps are acked) 376, which
// handleTwitchMessage's "376" case hands to handleWelcome, which emits the
// "connected" event.
func (c *Client) authenticate(ctx context.Context) error {
	c.state.log.Info("Sending authentication to server..")
	c.Emit("logon")

	caps := "twitch.tv/tags twitch.tv/commands"
	if !c.state.skipMembership {
		caps += " twitch.tv/membership"
	}

	if err := c.writeRaw(fmt.Sprintf("CAP REQ :%s", caps)); err != nil {
		return err
	}

	password, err := c.state.opts.Identity.resolvePassword(ctx)
	if err != nil {
		return fmt.Errorf("tmi: resolving password: %w", err)
	}

	if password != "" {
		if err := c.writeRaw(fmt.Sprintf("PASS %s", Password(password))); err != nil {
			return err
		}
	} else if IsJustinfan(c.state.username) {
		if err := c.writeRaw("PASS SCHMOOPIIE"); err != nil {
			return err
		}
	}

	return c.writeRaw(fmt.Sprintf("NICK %s", c.state.username))
}

// writeRaw writes a single pre-formatted IRC line to the wire, independent
// of the outgoing rate limiter (the handshake and PONG replies must never
// be throttled).
func (c *Client) writeRaw(line string) error {
	c.mu.RLock()
	ws := c.state.ws
	c.mu.RUnlock()

	if ws == nil {
		return errors.New("tmi: not connected to server")
	}

	return ws.WriteMessage(websocket.TextMessage, []byte(line))
}

// sendRaw writes a single IRC line, first waiting on the outgoing chat
// rate limiter. Used by every command that counts against Twitch's
// messages-per-30s budget; the handshake and PONG replies bypass this via
// writeRaw instead.
func (c *Client) sendRaw(ctx context.Context, line string) error {
	if err := waitSend(ctx, c.state.limiter); err != nil {
		return err
	}
	return c.writeRaw(line)
}

// handleMessages is the read loop: one goroutine per connection, reading
// frames until the socket errors (including on a deliberate Disconnect,
// which cancels c.ctx first so this returns quietly instead of reconnecting).
func (c *Client) handleMessages() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		ws := c.state.ws
		c.mu.RUnlock()
		if ws == nil {
			return
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			c.handleError(err)
			return
		}

		for _, msgStr := range strings.Split(strings.TrimSpace(string(data)), "\r\n") {
			if msgStr == "" {
				continue
			}
			if msg := ParseMessage(msgStr); msg != nil {
				c.handleMessage(msg)
			}
		}
	}
}

// handleError resets per-connection state, emits "disconnected", and —
// unless Disconnect was called or the retry budget is exhausted — schedules
// a reconnect with decaying backoff.
func (c *Client) handleError(err error) {
	c.mu.Lock()
	c.state.moderators = make(map[string][]string)
	c.state.userState = make(map[string]UserState)
	c.state.globalUserState = GlobalUserState{}
	c.state.lastJoinedSet = make(map[string]bool)

	if c.state.pingLoop != nil {
		c.state.pingLoop.Stop()
	}
	if c.state.pingTimeout != nil {
		c.state.pingTimeout.Stop()
	}
	if c.state.joinQ != nil {
		c.state.joinQ.Stop()
	}

	if c.state.authFailed {
		// failHandshake already recorded the real reason before closing
		// the socket; don't clobber it with the generic read-error text.
		c.state.authFailed = false
	} else {
		reason := "Connection closed."
		if err != nil {
			reason = fmt.Sprintf("Unable to connect: %v", err)
		}
		c.state.reason = reason
	}
	c.state.ws = nil

	shouldReconnect := c.state.reconnect && c.state.reconnections < c.state.maxReconnectAttempts && !c.state.wasCloseCalled
	if shouldReconnect {
		c.state.connState = stateReconnectWaiting
	} else {
		c.state.connState = stateClosed
	}
	reason := c.state.reason
	c.mu.Unlock()

	c.Emit("disconnected", reason)
	c.state.pending.rejectAll(ErrTimeout)

	if shouldReconnect {
		c.mu.Lock()
		c.state.reconnecting = true
		c.state.reconnections++
		c.state.reconnectTimer = time.Duration(float64(c.state.reconnectTimer) * c.state.reconnectDecay)
		if c.state.reconnectTimer > c.state.maxReconnectInterval {
			c.state.reconnectTimer = c.state.maxReconnectInterval
		}
		wait := c.state.reconnectTimer
		c.mu.Unlock()

		c.state.log.Error(fmt.Sprintf("Reconnecting in %v..", wait))
		c.Emit("reconnect")

		time.AfterFunc(wait, func() {
			c.mu.Lock()
			c.state.reconnecting = false
			c.state.connState = stateConnecting
			c.mu.Unlock()
			_ = c.openConnection(c.ctx)
		})
	} else {
		c.mu.RLock()
		exhausted := c.state.reconnections >= c.state.maxReconnectAttempts
		c.mu.RUnlock()
		if exhausted {
			c.Emit("maxreconnect")
			c.state.log.Error("Maximum reconnection attempts reached.")
		}
	}
}

// handshakeFailurePhrases are the NOTICE substrings Twitch sends when the
// CAP/PASS/NICK handshake is rejected outright, rather than merely timing
// out. None of them are worth retrying, so a match suppresses reconnect.
var handshakeFailurePhrases = []string{
	"Login unsuccessful",
	"Login authentication failed",
	"Error logging in",
	"Improperly formatted auth",
	"Invalid NICK",
}

func isHandshakeFailure(msg string) bool {
	for _, phrase := range handshakeFailurePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// failHandshake fails the in-flight Connect immediately instead of letting
// it run out the clock on ErrTimeout: it records reason, suppresses the
// usual reconnect-with-backoff, and closes the socket so handleMessages'
// read loop unwinds through the normal handleError cleanup path.
func (c *Client) failHandshake(reason string) {
	c.mu.Lock()
	c.state.reconnect = false
	c.state.reason = reason
	c.state.authFailed = true
	c.state.connState = stateClosing
	ws := c.state.ws
	c.mu.Unlock()

	c.state.log.Error(fmt.Sprintf("Authentication failed: %s", reason))
	c.state.pending.rejectTopic(promiseTopic("Connect", ""), &CommandError{Message: reason})

	if ws != nil {
		_ = ws.Close()
	}
}

// Disconnect closes the connection and stops any future automatic
// reconnect attempts.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state.ws == nil {
		c.mu.Unlock()
		return errors.New("tmi: not connected to server")
	}

	c.state.wasCloseCalled = true
	c.state.connState = stateClosing
	ws := c.state.ws
	if c.state.joinQ != nil {
		c.state.joinQ.Stop()
	}
	c.mu.Unlock()

	c.state.log.Info("Disconnecting from server..")
	c.cancel()
	err := ws.Close()

	c.mu.Lock()
	c.state.connState = stateClosed
	c.mu.Unlock()

	c.Emit("disconnected", "Connection closed.")

	return err
}

// GetUsername returns the current username.
func (c *Client) GetUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.username
}

// GetChannels returns the list of joined channels.
func (c *Client) GetChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, len(c.state.channels))
	copy(channels, c.state.channels)
	return channels
}

// IsMod checks if a username is a moderator in a channel.
func (c *Client) IsMod(channel, username string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mods, exists := c.state.moderators[Channel(channel)]
	if !exists {
		return false
	}

	return slices.Contains(mods, Username(username))
}

// ReadyState returns "OPEN" once the handshake has completed and "CLOSED"
// otherwise, including while a socket is open but still handshaking.
func (c *Client) ReadyState() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state.connState == stateOpenReady {
		return "OPEN"
	}
	return "CLOSED"
}

// isConnected reports whether the handshake has completed. A dialed socket
// that hasn't yet seen 376 is not "connected" — commands sent in that
// window would otherwise race Twitch's own auth processing.
func (c *Client) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.connState == stateOpenReady
}

// ConnState reports the current connection-state-machine value as a
// string, mainly useful for logging and tests.
func (c *Client) ConnState() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.connState.String()
}
