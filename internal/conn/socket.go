package conn

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is the minimal transport surface the manager needs. The production
// implementation is a gorilla/websocket connection; tests substitute fakes.
type Socket interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a socket to an endpoint.
type Dialer func(ctx context.Context, endpoint string) (Socket, error)

// WebsocketDialer returns a Dialer backed by gorilla/websocket.
func WebsocketDialer(compression bool) Dialer {
	return func(ctx context.Context, endpoint string) (Socket, error) {
		d := websocket.Dialer{
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: compression,
		}
		ws, _, err := d.DialContext(ctx, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
		}
		return ws, nil
	}
}

// isNormalClose reports whether a read error corresponds to a normal
// closure. Anything else counts as abnormal and is eligible for reconnect.
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure)
}

// closeMessage is the payload for a clean shutdown handshake.
func closeMessage() []byte {
	return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
}
