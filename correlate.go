package tmi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimeout is returned when a correlated command gets no NOTICE,
// ROOMSTATE, or USERSTATE response within its deadline. Twitch never echoes
// a request id, so "no response" and "response lost to a disconnect" look
// identical from here; callers should treat it as "unknown outcome", not
// "definitely failed".
var ErrTimeout = errors.New("tmi: timed out waiting for a response")

// CommandError wraps a Twitch NOTICE msg-id that indicates a command
// failed, so callers can branch on MsgID without string-matching Message.
type CommandError struct {
	MsgID   MsgID
	Message string
}

func (e *CommandError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tmi: %s: %s", e.MsgID, e.Message)
	}
	return fmt.Sprintf("tmi: %s", e.MsgID)
}

// promiseTopic builds the event-bus topic a correlated command's futures
// listen on. Scoping by channel (rather than one shared "_promiseX" topic
// per command kind, as tmi.js does) lets two outstanding commands against
// different channels resolve independently instead of racing on a single
// topic.
func promiseTopic(name, channel string) string {
	if channel == "" {
		return "_promise" + name
	}
	return "_promise" + name + ":" + Channel(channel)
}

type pendingEntry struct {
	id      uint64
	channel string
	topics  []string
	reject  func(err error)
}

// pendingOps tracks in-flight correlated commands two ways: by the exact
// promise topic they're waiting on (so a specific command failure, e.g.
// usage_ban, rejects only that command) and by channel (so a channel-wide
// failure notice — ban, suspension, no permission — can reject every
// command outstanding against that channel at once, since those NOTICEs
// never say which command they're answering).
type pendingOps struct {
	mu      sync.Mutex
	byTopic map[string][]*pendingEntry
	byCh    map[string][]*pendingEntry
	seq     uint64
}

func newPendingOps() *pendingOps {
	return &pendingOps{
		byTopic: make(map[string][]*pendingEntry),
		byCh:    make(map[string][]*pendingEntry),
	}
}

func (p *pendingOps) register(channel string, topics []string, reject func(error)) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	entry := &pendingEntry{id: p.seq, channel: channel, topics: topics, reject: reject}

	for _, t := range topics {
		p.byTopic[t] = append(p.byTopic[t], entry)
	}
	p.byCh[channel] = append(p.byCh[channel], entry)

	return entry.id
}

func (p *pendingOps) unregister(channel string, topics []string, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range topics {
		p.byTopic[t] = removeEntry(p.byTopic[t], id)
		if len(p.byTopic[t]) == 0 {
			delete(p.byTopic, t)
		}
	}

	p.byCh[channel] = removeEntry(p.byCh[channel], id)
	if len(p.byCh[channel]) == 0 {
		delete(p.byCh, channel)
	}
}

func removeEntry(entries []*pendingEntry, id uint64) []*pendingEntry {
	filtered := entries[:0:0]
	for _, e := range entries {
		if e.id != id {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// rejectTopic fails only the command(s) waiting on this exact promise
// topic, used when a NOTICE's msg-id identifies a specific command kind
// (e.g. usage_ban only fails a pending Ban, not a concurrently pending
// Timeout on the same channel).
func (p *pendingOps) rejectTopic(topic string, err error) {
	p.mu.Lock()
	entries := p.byTopic[topic]
	delete(p.byTopic, topic)
	p.mu.Unlock()

	for _, e := range entries {
		e.reject(err)
	}
}

// rejectChannel fails every command still outstanding against channel, used
// for the generic permission-class NOTICEs (no_permission, msg_banned,
// msg_room_not_found, msg_channel_suspended, tos_ban, invalid_user) that
// don't identify which command they're responding to.
func (p *pendingOps) rejectChannel(channel string, err error) {
	p.mu.Lock()
	entries := p.byCh[channel]
	delete(p.byCh, channel)
	p.mu.Unlock()

	for _, e := range entries {
		e.reject(err)
	}
}

// rejectAll fails every command outstanding on any channel; used when the
// connection itself drops, since no future NOTICE will ever arrive to
// resolve them.
func (p *pendingOps) rejectAll(err error) {
	p.mu.Lock()
	all := p.byCh
	p.byCh = make(map[string][]*pendingEntry)
	p.byTopic = make(map[string][]*pendingEntry)
	p.mu.Unlock()

	seen := make(map[uint64]bool)
	for _, entries := range all {
		for _, e := range entries {
			if !seen[e.id] {
				seen[e.id] = true
				e.reject(err)
			}
		}
	}
}

type awaitResult struct {
	args []any
	err  error
}

// awaitTopics races ctx, a timeout, and the first of several bus topics to
// fire, resolving to whichever happens first and cleaning up every other
// listener so none of them fire twice or leak. channel scopes the
// registration in pending so a later rejectChannel(channel, ...) call can
// still short-circuit this wait even though none of topics fired.
func awaitTopics(ctx context.Context, bus *EventEmitter, pending *pendingOps, channel string, topics []string, timeout time.Duration) ([]any, error) {
	resultCh := make(chan awaitResult, 1)

	var finishOnce sync.Once
	var mu sync.Mutex
	var registered []struct {
		topic string
		id    listenerID
	}
	var regID uint64

	finish := func(args []any, err error) {
		finishOnce.Do(func() {
			mu.Lock()
			for _, r := range registered {
				bus.offByID(r.topic, r.id)
			}
			mu.Unlock()
			pending.unregister(channel, topics, regID)
			resultCh <- awaitResult{args: args, err: err}
		})
	}

	regID = pending.register(channel, topics,
		func(err error) { finish(nil, err) },
	)

	mu.Lock()
	for _, topic := range topics {
		t := topic
		id := bus.once(t, func(args ...any) { finish(args, nil) })
		registered = append(registered, struct {
			topic string
			id    listenerID
		}{t, id})
	}
	mu.Unlock()

	timer := time.AfterFunc(timeout, func() { finish(nil, ErrTimeout) })
	defer timer.Stop()

	select {
	case <-ctx.Done():
		finish(nil, ctx.Err())
		return nil, ctx.Err()
	case r := <-resultCh:
		return r.args, r.err
	}
}

// promiseDelay is the default deadline for a correlated command: Twitch's
// own round trip plus headroom, floored at 600ms so a freshly-connected
// client (currentLatency still zero) doesn't time out instantly.
func (c *Client) promiseDelay() time.Duration {
	c.mu.RLock()
	latency := c.state.currentLatency
	c.mu.RUnlock()

	d := latency + 100*time.Millisecond
	if d < 600*time.Millisecond {
		d = 600 * time.Millisecond
	}
	return d
}

// awaitCommand is the shared helper every correlated command method uses:
// send the raw IRC line, then race the bus topics that would indicate its
// outcome against the default promise delay.
func (c *Client) awaitCommand(ctx context.Context, channel string, line string, topics []string) ([]any, error) {
	if err := c.sendRaw(ctx, line); err != nil {
		return nil, err
	}
	return awaitTopics(ctx, c.EventEmitter, c.state.pending, Channel(channel), topics, c.promiseDelay())
}
