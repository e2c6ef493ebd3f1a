// Package ws is the live log-subscription client: one logsSubscribe
// request per AMM program of interest, with automatic reconnect and
// resubscribe across N concurrent subscriptions, backed by a
// full-jitter capped backoff and a bounded retry count.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config controls reconnect and keepalive behavior.
type Config struct {
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	MaxReconnectAttempts int
	PingInterval         time.Duration
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	SubscribeTimeout     time.Duration
}

// DefaultConfig returns the documented defaults: 5s initial backoff
// doubling to a 5 minute cap, 10 reconnect attempts before raising
// fatal, 30s heartbeat ping.
func DefaultConfig() Config {
	return Config{
		InitialBackoff:       5 * time.Second,
		MaxBackoff:           5 * time.Minute,
		MaxReconnectAttempts: 10,
		PingInterval:         30 * time.Second,
		ReadTimeout:          60 * time.Second,
		WriteTimeout:         10 * time.Second,
		SubscribeTimeout:     30 * time.Second,
	}
}

// LogNotification is one logsNotification delivery, tagged with the
// program whose mentions filter produced it.
type LogNotification struct {
	ProgramID string
	Signature string
	Logs      []string
	Slot      int64
	Err       interface{}
}

// Client maintains subscriptions to a fixed set of program IDs over a
// single WebSocket connection, reconnecting and resubscribing to all
// of them on loss.
type Client struct {
	endpoint  string
	programs  []string
	cfg       Config
	logger    *log.Logger
	requestID atomic.Uint64

	notifications chan LogNotification
	fatal         chan error

	connMu sync.Mutex
	conn   *websocket.Conn

	subsMu    sync.Mutex
	subToProg map[int64]string
}

// New builds a Client for the given program IDs. logger defaults to
// log.Default() with no special prefix if nil.
func New(endpoint string, programs []string, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		endpoint:      endpoint,
		programs:      programs,
		cfg:           cfg,
		logger:        logger,
		notifications: make(chan LogNotification, 4096),
		fatal:         make(chan error, 1),
		subToProg:     make(map[int64]string),
	}
}

// Notifications is the stream of classified log notifications.
func (c *Client) Notifications() <-chan LogNotification { return c.notifications }

// Fatal fires once, after reconnect attempts are exhausted.
func (c *Client) Fatal() <-chan error { return c.fatal }

// Run connects, subscribes to every configured program, and reads
// until ctx is cancelled or reconnection is exhausted. It blocks; call
// it in its own goroutine.
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if !c.awaitReconnect(ctx, &attempt, err) {
				return
			}
			continue
		}

		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()

		if err := c.subscribeAll(ctx); err != nil {
			c.closeConn()
			if !c.awaitReconnect(ctx, &attempt, err) {
				return
			}
			continue
		}

		attempt = 0
		pingDone := make(chan struct{})
		go c.pingLoop(ctx, conn, pingDone)

		readErr := c.readLoop(ctx, conn)
		close(pingDone)
		c.closeConn()

		if ctx.Err() != nil {
			return
		}
		if !c.awaitReconnect(ctx, &attempt, readErr) {
			return
		}
	}
}

// awaitReconnect sleeps for a full-jitter backoff proportional to
// attempt, or reports fatal and returns false once attempts are
// exhausted.
func (c *Client) awaitReconnect(ctx context.Context, attempt *int, cause error) bool {
	*attempt++
	if *attempt > c.cfg.MaxReconnectAttempts {
		select {
		case c.fatal <- fmt.Errorf("reconnect attempts exhausted after %d tries: %w", *attempt-1, cause):
		default:
		}
		return false
	}

	delay := fullJitterBackoff(c.cfg.InitialBackoff, c.cfg.MaxBackoff, *attempt)
	c.logger.Printf("connection lost (%v), reconnecting in %v (attempt %d/%d)", cause, delay, *attempt, c.cfg.MaxReconnectAttempts)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// fullJitterBackoff picks a random duration in [0, min(max, base*2^(attempt-1))).
func fullJitterBackoff(base, max time.Duration, attempt int) time.Duration {
	limit := base
	for i := 1; i < attempt; i++ {
		limit *= 2
		if limit > max {
			limit = max
			break
		}
	}
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

type subscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type subscribeResponse struct {
	ID     uint64 `json:"id"`
	Result int64  `json:"result"`
}

// subscribeAll issues one logsSubscribe per program and waits for each
// ack in turn before moving to the next.
func (c *Client) subscribeAll(ctx context.Context) error {
	c.subsMu.Lock()
	c.subToProg = make(map[int64]string)
	c.subsMu.Unlock()

	for _, program := range c.programs {
		subID, err := c.subscribeOne(ctx, program)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", program, err)
		}
		c.subsMu.Lock()
		c.subToProg[subID] = program
		c.subsMu.Unlock()
	}
	return nil
}

func (c *Client) subscribeOne(ctx context.Context, program string) (int64, error) {
	reqID := c.requestID.Add(1)
	req := subscribeRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{program}},
			map[string]string{"commitment": "confirmed"},
		},
	}

	c.connMu.Lock()
	conn := c.conn
	if conn == nil {
		c.connMu.Unlock()
		return 0, fmt.Errorf("not connected")
	}
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	err := conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	deadline := time.NewTimer(c.cfg.SubscribeTimeout)
	defer deadline.Stop()

	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.SubscribeTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("read subscribe ack: %w", err)
		}
		var resp subscribeResponse
		if err := json.Unmarshal(message, &resp); err == nil && resp.ID == reqID {
			return resp.Result, nil
		}
		select {
		case <-deadline.C:
			return 0, fmt.Errorf("subscribe ack timeout")
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
	}
}

type wsNotification struct {
	Method string `json:"method"`
	Params *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Value struct {
				Signature string      `json:"signature"`
				Logs      []string    `json:"logs"`
				Err       interface{} `json:"err"`
			} `json:"value"`
			Context struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
		} `json:"result"`
	} `json:"params"`
}

// readLoop reads notifications until the connection errors or closes.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var notif wsNotification
		if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "logsNotification" || notif.Params == nil {
			continue
		}

		c.subsMu.Lock()
		program := c.subToProg[notif.Params.Subscription]
		c.subsMu.Unlock()

		ln := LogNotification{
			ProgramID: program,
			Signature: notif.Params.Result.Value.Signature,
			Logs:      notif.Params.Result.Value.Logs,
			Slot:      notif.Params.Result.Context.Slot,
			Err:       notif.Params.Result.Value.Err,
		}

		select {
		case c.notifications <- ln:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn == conn {
				conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
