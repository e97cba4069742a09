package tmi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory stand-in for a *websocket.Conn: Close makes any
// blocked or future ReadMessage fail, mirroring how a real socket read
// unblocks with an error once the peer drops the connection.
type fakeConn struct {
	in        chan []byte
	out       chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 64),
		out:    make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.in:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, errors.New("fake: connection closed")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("fake: connection closed")
	default:
	}
	select {
	case f.out <- string(data):
	default:
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (f *fakeConn) feed(line string) {
	select {
	case f.in <- []byte(line):
	case <-f.closed:
	}
}

type fakeDialer struct {
	mu   sync.Mutex
	next *fakeConn
	err  error
	dial int
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dial++
	if d.err != nil {
		return nil, d.err
	}
	return d.next, nil
}

// fakeServer drives a fakeConn the way Twitch's IRC server would: it reacts
// to the handshake and to a handful of commands the integration tests care
// about, and records every line the client wrote so tests can assert on
// them afterward.
type fakeServer struct {
	conn     *fakeConn
	username string

	mu   sync.Mutex
	sent []string
}

func newFakeServer(username string) *fakeServer {
	s := &fakeServer{conn: newFakeConn(), username: username}
	go s.loop()
	return s
}

func (s *fakeServer) loop() {
	for line := range s.conn.out {
		s.mu.Lock()
		s.sent = append(s.sent, line)
		s.mu.Unlock()

		switch {
		case strings.HasPrefix(line, "NICK "):
			s.conn.feed(":tmi.twitch.tv 001 " + s.username + " :Welcome, GLHF!")
			s.conn.feed(":tmi.twitch.tv 376 " + s.username + " :>")

		case strings.HasPrefix(line, "JOIN "):
			channel := strings.TrimPrefix(line, "JOIN ")
			s.conn.feed(":" + s.username + "!" + s.username + "@" + s.username + ".tmi.twitch.tv JOIN " + channel)
			s.conn.feed(":tmi.twitch.tv ROOMSTATE " + channel + " :")

		case strings.Contains(line, "PRIVMSG #channel :/ban "):
			s.conn.feed("@msg-id=ban_success :tmi.twitch.tv NOTICE #channel :baduser is now banned from this channel.")

		case strings.Contains(line, "PRIVMSG #channel :/timeout "):
			s.conn.feed("@msg-id=timeout_success :tmi.twitch.tv NOTICE #channel :baduser has been timed out.")

		case line == "PING":
			s.conn.feed("PONG tmi.twitch.tv")
		}
	}
}

func (s *fakeServer) sentLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

func testClientOptions(dialer Dialer) *ClientOptions {
	return &ClientOptions{
		Options:    &Options{},
		Connection: &Connection{Timeout: 2 * time.Second},
		Identity:   &Identity{Username: "bot", Password: "oauth:x"},
		Dialer:     dialer,
	}
}

func TestClient_ConnectBlocksUntilWelcome(t *testing.T) {
	server := newFakeServer("bot")
	client := NewClient(testClientOptions(&fakeDialer{next: server.conn}))

	err := client.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OPEN-READY", client.ConnState())
	assert.True(t, client.isConnected())

	sent := server.sentLines()
	require.NotEmpty(t, sent)
	assert.True(t, strings.HasPrefix(sent[len(sent)-1], "NICK "))
}

func TestClient_ConnectFailsFastOnAuthFailureNotice(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{next: conn}
	client := NewClient(testClientOptions(dialer))

	go func() {
		for line := range conn.out {
			if strings.HasPrefix(line, "NICK ") {
				conn.feed(":tmi.twitch.tv NOTICE * :Login authentication failed")
				return
			}
		}
	}()

	err := client.Connect(context.Background())
	require.Error(t, err)

	client.mu.RLock()
	reconnect := client.state.reconnect
	client.mu.RUnlock()
	assert.False(t, reconnect, "auth failure must suppress automatic reconnect")

	require.Eventually(t, func() bool {
		return client.ConnState() == "CLOSED"
	}, time.Second, 5*time.Millisecond)
}

func TestClient_ConnectTimesOutWithNoWelcome(t *testing.T) {
	conn := newFakeConn()
	opts := testClientOptions(&fakeDialer{next: conn})
	opts.Connection.Timeout = 30 * time.Millisecond
	client := NewClient(opts)

	err := client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)

	// Reconnect defaults on, so the failed handshake schedules a retry
	// rather than settling at CLOSED; give the read loop's error handler
	// a moment to run before asserting on it.
	require.Eventually(t, func() bool {
		return client.ConnState() == "RECONNECT-WAITING"
	}, time.Second, 5*time.Millisecond)
}

func TestClient_ConnectRespectsContextCancellation(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(testClientOptions(&fakeDialer{next: conn}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_BanNoticeResolvesPendingBan(t *testing.T) {
	server := newFakeServer("bot")
	client := NewClient(testClientOptions(&fakeDialer{next: server.conn}))
	require.NoError(t, client.Connect(context.Background()))

	err := client.Ban(context.Background(), "#channel", "baduser", "")
	assert.NoError(t, err)
}

func TestClient_TimeoutNoticeResolvesPendingTimeout(t *testing.T) {
	server := newFakeServer("bot")
	client := NewClient(testClientOptions(&fakeDialer{next: server.conn}))
	require.NoError(t, client.Connect(context.Background()))

	err := client.Timeout(context.Background(), "#channel", "baduser", 60, "")
	assert.NoError(t, err)
}

func TestClient_ConfiguredChannelsEachGetOwnJoinLine(t *testing.T) {
	server := newFakeServer("bot")
	opts := testClientOptions(&fakeDialer{next: server.conn})
	opts.Channels = []string{"#one", "#two"}
	opts.Options.JoinInterval = 300
	client := NewClient(opts)
	require.NoError(t, client.Connect(context.Background()))

	require.Eventually(t, func() bool {
		sent := server.sentLines()
		joins := 0
		for _, line := range sent {
			if strings.HasPrefix(line, "JOIN ") {
				joins++
			}
		}
		return joins == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClient_PingResolvesOnPong(t *testing.T) {
	server := newFakeServer("bot")
	client := NewClient(testClientOptions(&fakeDialer{next: server.conn}))
	require.NoError(t, client.Connect(context.Background()))

	err := client.Ping(context.Background())
	assert.NoError(t, err)
}

func TestClient_ReadErrorTriggersDisconnectedAndReconnectWaiting(t *testing.T) {
	server := newFakeServer("bot")
	opts := testClientOptions(&fakeDialer{next: server.conn})
	opts.Connection.ReconnectInterval = time.Hour // don't let the real retry fire mid-test
	client := NewClient(opts)
	require.NoError(t, client.Connect(context.Background()))

	disconnected := make(chan string, 1)
	client.On("disconnected", func(args ...any) {
		if len(args) > 0 {
			if reason, ok := args[0].(string); ok {
				disconnected <- reason
			}
		}
	})

	server.conn.Close()

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("expected a disconnected event after the read loop errored")
	}

	require.Eventually(t, func() bool {
		return client.ConnState() == "RECONNECT-WAITING"
	}, time.Second, 5*time.Millisecond)
}
