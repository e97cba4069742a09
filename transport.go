package tmi

import (
	"context"
	"crypto/tls"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"h12.io/socks"
)

// Conn is the minimal surface the connection core needs from a wire
// transport. *websocket.Conn satisfies it directly; tests substitute a
// fake implementation instead of opening a real socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
}

// Dialer opens a Conn to a Twitch IRC WebSocket endpoint. The default
// implementation wraps gorilla/websocket; setting ClientOptions.Dialer
// lets an embedder supply a fake for tests or a differently-configured one
// (custom TLS, proxying, timeouts).
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// websocketDialer is the production Dialer, optionally routing its TCP
// dial through a SOCKS5 proxy.
type websocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer builds the default Dialer. When proxyAddr is
// non-empty, the underlying TCP connection is established through a SOCKS5
// proxy at that address instead of dialing Twitch directly.
func NewWebsocketDialer(proxyAddr string, insecureSkipVerify bool) Dialer {
	d := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if insecureSkipVerify {
		d.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	if proxyAddr != "" {
		d.NetDial = socks.Dial("socks5://" + proxyAddr + "?timeout=10s")
	}

	return &websocketDialer{dialer: d}
}

func (w *websocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, err
	}

	conn, _, err := w.dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}

	return conn, nil
}
