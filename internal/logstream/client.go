// Package logstream implements the resilient WebSocket log-stream consumer
// (spec §4.2, C2): connect, send the init frame, decode frames into the
// bounded queue, and reconnect with backoff on any transient failure.
package logstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bwcc-clan/polebot-go/internal/backoff"
	"github.com/bwcc-clan/polebot-go/internal/model"
)

// DefaultOpenTimeout tolerates slow initial handshakes (spec §5: "≈ 600 s").
const DefaultOpenTimeout = 600 * time.Second

var retryableUpgradeStatus = map[int]bool{500: true, 502: true, 503: true, 504: true}

// Config configures a Client.
type Config struct {
	WSURL        string
	APIKey       string
	ExtraHeaders map[string]string
	OpenTimeout  time.Duration
	// LastSeenID resumes a previous session if non-nil (spec §4.2).
	LastSeenID *string
	// Actions, if non-empty, asks the server to filter server-side.
	Actions []model.LogMessageType
	Backoff backoff.SequenceConfig
	Logger  *slog.Logger
}

// Client maintains one reconnecting WebSocket log-stream connection.
type Client struct {
	cfg             Config
	dialer          *websocket.Dialer
	logger          *slog.Logger
	firstConnection bool
	lastSeenID      *string
}

// New constructs a Client. It performs no network I/O.
func New(cfg Config) *Client {
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = DefaultOpenTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:             cfg,
		dialer:          &websocket.Dialer{HandshakeTimeout: openTimeout, ReadBufferSize: 1 << 16, WriteBufferSize: 1 << 16},
		logger:          logger,
		firstConnection: true,
		lastSeenID:      cfg.LastSeenID,
	}
}

// SetActions replaces the server-side log-type filter sent in the next init
// frame. Callers must set this before Run starts (spec §4.6: "the log-stream
// client's filter is set to {match_start, match_end} before entering").
func (c *Client) SetActions(actions []model.LogMessageType) {
	c.cfg.Actions = actions
}

// Run connects, streams decoded LogStreamObjects onto queue (blocking when
// full — backpressure is intentional, spec §5), and reconnects with backoff
// on any transient failure. Run returns only on a fatal error or when ctx is
// cancelled.
func (c *Client) Run(ctx context.Context, queue chan<- model.LogStreamObject) error {
	var seq *backoff.Sequence

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		hadSuccess, err := c.runOnce(ctx, queue)
		c.firstConnection = false

		if hadSuccess {
			seq = nil
		}

		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return err
		}

		if seq == nil {
			seq = backoff.NewSequence(c.cfg.Backoff)
		}
		delay, ok := seq.Next()
		if !ok {
			return fmt.Errorf("logstream: reconnect attempts exhausted: %w", err)
		}

		c.logger.Warn("logstream: reconnecting after failure", "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runOnce performs one connect-stream-disconnect cycle. hadSuccess reports
// whether at least one frame was received without error, which resets the
// backoff sequence per spec §4.2 ("reset to None on any successful receive
// cycle").
func (c *Client) runOnce(ctx context.Context, queue chan<- model.LogStreamObject) (hadSuccess bool, err error) {
	header := make(map[string][]string, len(c.cfg.ExtraHeaders)+1)
	header["Authorization"] = []string{"Bearer " + c.cfg.APIKey}
	for k, v := range c.cfg.ExtraHeaders {
		header[k] = []string{v}
	}

	conn, resp, dialErr := c.dialer.DialContext(ctx, c.cfg.WSURL, header)
	if dialErr != nil {
		return false, c.classifyDialError(dialErr, resp)
	}
	defer conn.Close()

	if err := c.sendInit(conn); err != nil {
		return false, fmt.Errorf("logstream: sending init frame: %w", err)
	}

	return c.receiveLoop(ctx, conn, queue)
}

func (c *Client) classifyDialError(dialErr error, resp *websocket.Response) error {
	var dnsErr *net.DNSError
	if errors.As(dialErr, &dnsErr) {
		if c.firstConnection {
			return &FatalError{Op: "dial (first connection)", Err: dialErr}
		}
		return dialErr
	}

	if errors.Is(dialErr, websocket.ErrBadHandshake) && resp != nil {
		if retryableUpgradeStatus[resp.StatusCode] {
			return fmt.Errorf("logstream: upgrade rejected with status %d: %w", resp.StatusCode, dialErr)
		}
		return &FatalError{Op: "dial (handshake refused)", Err: fmt.Errorf("upgrade rejected with status %d: %w", resp.StatusCode, dialErr)}
	}

	return dialErr
}

func (c *Client) sendInit(conn *websocket.Conn) error {
	frame := model.LogStreamInit{LastSeenID: c.lastSeenID, Actions: c.cfg.Actions}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn, queue chan<- model.LogStreamObject) (hadSuccess bool, err error) {
	type readResult struct {
		data []byte
		err  error
	}
	reads := make(chan readResult, 1)

	for {
		go func() {
			_, data, err := conn.ReadMessage()
			reads <- readResult{data: data, err: err}
		}()

		select {
		case <-ctx.Done():
			conn.Close()
			<-reads
			return hadSuccess, ctx.Err()

		case r := <-reads:
			if r.err != nil {
				return hadSuccess, fmt.Errorf("logstream: read: %w", r.err)
			}

			var resp model.LogStreamResponse
			if err := json.Unmarshal(r.data, &resp); err != nil {
				c.logger.Warn("logstream: dropping undecodable frame", "error", err)
				continue
			}
			if resp.Error != "" {
				return hadSuccess, &MessageError{Text: resp.Error}
			}

			if resp.LastSeenID != nil {
				c.lastSeenID = resp.LastSeenID
			}
			hadSuccess = true

			for _, obj := range resp.Logs {
				select {
				case queue <- obj:
				case <-ctx.Done():
					return hadSuccess, ctx.Err()
				}
			}
		}
	}
}
