package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/metrics"
)

const (
	initialReconnectInterval = 1 * time.Second
	maxReconnectInterval     = 16 * time.Second
)

// Conn is the subset of a websocket connection the channel needs. The
// fasthttp websocket connection satisfies it directly.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer func(ctx context.Context) (Conn, error)

// WebSocketDialer dials the given url with the default fasthttp dialer.
func WebSocketDialer(url string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type Response struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	OK     bool            `json:"ok"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Event is an unsolicited frame from the external process, one that
// carries a method but no correlation id.
type Event struct {
	Method string
	Data   json.RawMessage
}

type callResult struct {
	resp Response
	err  error
}

// Channel is a persistent duplex connection to one external process.
// Every outbound command carries a generated correlation id; each inbound
// response resolves its pending caller exactly once. Responses that match
// nothing are logged and dropped. When the connection is lost, every
// pending call fails with domain.ErrChannelClosed and the channel
// re-dials with capped backoff.
type Channel struct {
	name        string
	dial        Dialer
	callTimeout time.Duration
	pending     *SyncMapWrapper[string, chan callResult]

	mu      sync.Mutex
	conn    Conn
	onEvent func(Event)

	ctx    context.Context
	cancel context.CancelFunc
}

func NewChannel(name string, dial Dialer, callTimeout time.Duration) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		name:        name,
		dial:        dial,
		callTimeout: callTimeout,
		pending:     NewSyncMapWrapper[string, chan callResult](),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// OnEvent registers the handler for unsolicited frames. Must be called
// before Run.
func (c *Channel) OnEvent(f func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = f
}

// Run dials and serves the connection until Close, re-dialing after
// connection loss. Blocks; start it on its own goroutine.
func (c *Channel) Run() {
	backoff := initialReconnectInterval
	for {
		conn, err := c.dial(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			slog.Warn("rpc channel dial failed", "channel", c.name, "error", err, "retryIn", backoff)
			select {
			case <-time.After(backoff):
			case <-c.ctx.Done():
				return
			}
			backoff = min(backoff*2, maxReconnectInterval)
			continue
		}
		backoff = initialReconnectInterval
		slog.Info("rpc channel connected", "channel", c.name)

		c.setConn(conn)
		c.readLoop(conn)
		c.setConn(nil)
		_ = conn.Close()
		c.failPending()

		if c.ctx.Err() != nil {
			return
		}
	}
}

func (c *Channel) Close() {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	c.failPending()
}

// Call sends a command and waits for the correlated response. If ctx has
// no deadline, the channel's default call timeout applies. A call never
// waits past connection loss.
func (c *Channel) Call(ctx context.Context, method string, data interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	id := uuid.NewString()
	result := make(chan callResult, 1)
	c.pending.Store(id, result)
	defer c.pending.Delete(id)

	metrics.RPCInFlight.WithLabelValues(c.name).Inc()
	defer metrics.RPCInFlight.WithLabelValues(c.name).Dec()

	if err := c.write(Request{ID: id, Method: method, Data: payload}); err != nil {
		metrics.RPCFailuresTotal.WithLabelValues(c.name, "closed").Inc()
		return nil, err
	}

	select {
	case res := <-result:
		if res.err != nil {
			metrics.RPCFailuresTotal.WithLabelValues(c.name, "closed").Inc()
			return nil, res.err
		}
		if !res.resp.OK {
			metrics.RPCFailuresTotal.WithLabelValues(c.name, "remote").Inc()
			return nil, fmt.Errorf("%s: %s", method, res.resp.Error)
		}
		return res.resp.Data, nil
	case <-ctx.Done():
		metrics.RPCFailuresTotal.WithLabelValues(c.name, "timeout").Inc()
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (c *Channel) setConn(conn Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) write(req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return domain.ErrChannelClosed
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				slog.Warn("rpc channel disconnected", "channel", c.name, "error", err)
			}
			return
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			slog.Warn("dropping malformed rpc frame", "channel", c.name, "error", err)
			continue
		}

		if resp.ID == "" {
			c.dispatchEvent(resp)
			continue
		}

		result, ok := c.pending.LoadAndDelete(resp.ID)
		if !ok {
			slog.Debug("dropping rpc response with no pending call", "channel", c.name, "id", resp.ID)
			metrics.RPCDroppedResponsesTotal.WithLabelValues(c.name).Inc()
			continue
		}
		result <- callResult{resp: resp}
	}
}

func (c *Channel) dispatchEvent(resp Response) {
	if resp.Method == "" {
		slog.Debug("dropping rpc frame with no id and no method", "channel", c.name)
		return
	}
	c.mu.Lock()
	handler := c.onEvent
	c.mu.Unlock()
	if handler == nil {
		return
	}
	handler(Event{Method: resp.Method, Data: resp.Data})
}

func (c *Channel) failPending() {
	c.pending.Range(func(id string, result chan callResult) bool {
		if _, ok := c.pending.LoadAndDelete(id); ok {
			result <- callResult{err: domain.ErrChannelClosed}
		}
		return true
	})
}
