package streams

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Bridge timing constants, matching the read/write pump pattern this bridge
// is grounded on.
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 4096
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireEnvelope is the JSON shape an Envelope is rendered as over the wire;
// Payload must already be JSON-marshalable (callers publishing through the
// WebSocketBridge are expected to use JSON-friendly payloads, unlike the
// gob-carried explicit/implicit actor paths).
type wireEnvelope struct {
	Namespace Namespace `json:"namespace"`
	Key       Key       `json:"key"`
	Payload   any       `json:"payload"`
}

// Subscriber is the narrow Broker surface WebSocketBridge needs: enough to
// subscribe a channel and unsubscribe it again on disconnect.
type Subscriber interface {
	Subscribe(ctx context.Context, namespace Namespace, key Key,
		cfg StreamConfig) (token string, messages <-chan Envelope, err error)
	Unsubscribe(ctx context.Context, namespace Namespace, key Key, token string) error
}

// WebSocketBridge exposes a Broker's explicit-subscription streams to
// out-of-process consumers over a WebSocket connection: one stream per
// connection, chosen by the namespace/key query parameters on upgrade.
type WebSocketBridge struct {
	broker Subscriber
	config StreamConfig
}

// NewWebSocketBridge constructs a bridge over broker. Subscriptions created
// through it use cfg (falling back to DefaultStreamConfig if cfg's
// BufferSize is unset).
func NewWebSocketBridge(broker Subscriber, cfg StreamConfig) *WebSocketBridge {
	if cfg.BufferSize <= 0 {
		cfg = DefaultStreamConfig()
	}
	return &WebSocketBridge{broker: broker, config: cfg}
}

// ServeHTTP upgrades the connection and pumps the requested stream's
// Envelopes to the client as JSON text frames until the client disconnects.
func (b *WebSocketBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	namespace := Namespace(r.URL.Query().Get("namespace"))
	key := Key(r.URL.Query().Get("key"))
	if namespace == "" {
		http.Error(w, "missing namespace", http.StatusBadRequest)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WarnS(r.Context(), "websocket upgrade failed", "err", err)
		return
	}

	ctx := r.Context()
	token, messages, err := b.broker.Subscribe(ctx, namespace, key, b.config)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		conn.Close()
		return
	}

	client := &wsBridgeClient{
		conn: conn, bridge: b, namespace: namespace, key: key, token: token,
	}

	go client.readPump()
	client.writePump(messages)

	b.broker.Unsubscribe(context.Background(), namespace, key, token)
}

// wsBridgeClient pumps one subscription's Envelopes to one WebSocket
// connection, mirroring the read/write pump split so a dead/slow reader
// can't block delivery indefinitely.
type wsBridgeClient struct {
	conn      *websocket.Conn
	bridge    *WebSocketBridge
	namespace Namespace
	key       Key
	token     string
}

// readPump only drains control frames (pings/pongs/close); the bridge is
// one-directional, so any data frame from the client is discarded.
func (c *wsBridgeClient) readPump() {
	c.conn.SetReadLimit(wsMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsBridgeClient) writePump(messages <-chan Envelope) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-messages:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(wireEnvelope{
				Namespace: env.Namespace, Key: env.Key, Payload: env.Payload,
			})
			if err != nil {
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
