package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Stewart86/bobby/internal/reliability"
)

const defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway opcodes.
const (
	opDispatch  = 0
	opHeartbeat = 1
	opIdentify  = 2
	opHello     = 10
	opHeartACK  = 11
)

// intents: guilds + guild messages + message content.
const gatewayIntents = 1<<0 | 1<<9 | 1<<15

// MessageHandler receives each inbound chat message. Handlers are invoked
// from the read loop and must not block; spawn work onto goroutines.
type MessageHandler func(msg InboundMessage)

type gatewayPayload struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  int64           `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// Gateway maintains the websocket connection that delivers inbound events,
// reconnecting with capped backoff when the platform drops it.
type Gateway struct {
	url     string
	token   string
	handler MessageHandler
	log     *slog.Logger

	writeMu   sync.Mutex
	connected atomic.Bool
	seqMu     sync.Mutex
	lastSeq   int64
	haveSeq   bool
}

func NewGateway(url, token string, handler MessageHandler, log *slog.Logger) *Gateway {
	if url == "" {
		url = defaultGatewayURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{url: url, token: token, handler: handler, log: log}
}

// Connected reports whether the gateway currently holds an identified
// connection.
func (g *Gateway) Connected() bool {
	return g.connected.Load()
}

// Run connects and consumes events until the context is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := g.runOnce(ctx)
		g.connected.Store(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := reliability.ExponentialBackoff(attempt, time.Second, 30*time.Second)
		g.log.Warn("gateway disconnected, reconnecting", "error", err, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (g *Gateway) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	var hello gatewayPayload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var hd helloData
	if err := json.Unmarshal(hello.D, &hd); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go g.heartbeatLoop(heartbeatCtx, conn, time.Duration(hd.HeartbeatInterval)*time.Millisecond)

	if err := g.identify(conn); err != nil {
		return err
	}
	g.connected.Store(true)

	for {
		var payload gatewayPayload
		if err := conn.ReadJSON(&payload); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read gateway event: %w", err)
		}
		g.observeSeq(payload.S)

		switch payload.Op {
		case opDispatch:
			if payload.T == "MESSAGE_CREATE" {
				var msg InboundMessage
				if err := json.Unmarshal(payload.D, &msg); err != nil {
					g.log.Warn("undecodable message event", "error", err)
					continue
				}
				g.handler(msg)
			}
		case opHeartbeat:
			g.sendHeartbeat(conn)
		case opHeartACK:
			// Expected; nothing to do.
		}
	}
}

func (g *Gateway) identify(conn *websocket.Conn) error {
	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.token,
			"intents": gatewayIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "bobby",
				"device":  "bobby",
			},
		},
	}
	if err := g.writeJSON(conn, identify); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	return nil
}

func (g *Gateway) heartbeatLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	if interval <= 0 {
		interval = 41250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(conn); err != nil {
				g.log.Warn("heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (g *Gateway) sendHeartbeat(conn *websocket.Conn) error {
	g.seqMu.Lock()
	var seq any
	if g.haveSeq {
		seq = g.lastSeq
	}
	g.seqMu.Unlock()
	return g.writeJSON(conn, map[string]any{"op": opHeartbeat, "d": seq})
}

func (g *Gateway) observeSeq(s int64) {
	if s == 0 {
		return
	}
	g.seqMu.Lock()
	g.lastSeq = s
	g.haveSeq = true
	g.seqMu.Unlock()
}

func (g *Gateway) writeJSON(conn *websocket.Conn, v any) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if err := conn.WriteJSON(v); err != nil {
		return errors.Join(errors.New("gateway write"), err)
	}
	return nil
}
