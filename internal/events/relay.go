package events

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/types"
)

const (
	defaultWriteTimeout = 5 * time.Second
	closeGracePeriod    = time.Second
)

// Ensure RelayClient implements Publisher interface.
var _ Publisher = (*RelayClient)(nil)

// RelayClient keeps a single websocket connection to the relay and reconnects forever. Events
// published while disconnected are dropped.
type RelayClient struct {
	url          string
	header       http.Header
	dialer       *websocket.Dialer
	backoff      func() retry.Backoff
	writeTimeout time.Duration

	mu    sync.Mutex
	conn  *websocket.Conn
	ready chan struct{}
}

type RelayOption func(*RelayClient)

func WithRelayHeader(header http.Header) RelayOption {
	return func(c *RelayClient) {
		c.header = header
	}
}

func WithRelayBackoff(backoff func() retry.Backoff) RelayOption {
	return func(c *RelayClient) {
		c.backoff = backoff
	}
}

func WithRelayDialer(dialer *websocket.Dialer) RelayOption {
	return func(c *RelayClient) {
		c.dialer = dialer
	}
}

func defaultRelayBackoff() retry.Backoff {
	b := retry.NewExponential(500 * time.Millisecond)
	b = retry.WithCappedDuration(30*time.Second, b)
	b = retry.WithJitterPercent(10, b)
	return b
}

func NewRelayClient(url string, opts ...RelayOption) *RelayClient {
	c := &RelayClient{
		url:          url,
		dialer:       websocket.DefaultDialer,
		backoff:      defaultRelayBackoff,
		writeTimeout: defaultWriteTimeout,
		ready:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run connects to the relay and reconnects whenever the connection drops. It returns once ctx
// is done.
func (c *RelayClient) Run(ctx context.Context) error {
	for {
		conn, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		c.attach(conn)
		logger.Logger.InfoContext(ctx, "connected to event relay", "url", c.url)

		err = c.readUntilClosed(ctx, conn)
		c.detach(conn)

		if ctx.Err() != nil {
			return nil
		}
		logger.Logger.WarnContext(ctx, "disconnected from event relay", "url", c.url, "error", err)
	}
}

// WaitConnected blocks until a connection is established or ctx is done.
func (c *RelayClient) WaitConnected(ctx context.Context) error {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RelayClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *RelayClient) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		var err error
		//nolint:bodyclose // the handshake response body does not need to be closed
		conn, _, err = c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			logger.Logger.WarnContext(ctx, "failed to connect to event relay", "url", c.url, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return conn, nil
}

func (c *RelayClient) readUntilClosed(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeGracePeriod),
			)
			_ = conn.Close()
		case <-done:
		}
	}()

	// the relay acknowledges nothing the worker needs, frames are read only to notice a close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func (c *RelayClient) attach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
	close(c.ready)
}

func (c *RelayClient) detach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked(conn)
}

func (c *RelayClient) dropLocked(conn *websocket.Conn) {
	_ = conn.Close()
	if c.conn != conn {
		return
	}

	c.conn = nil
	c.ready = make(chan struct{})
}

func (c *RelayClient) Publish(ctx context.Context, roomID string, event string, payload any) error {
	_, span := tracer.Start(ctx, "RelayClient.Publish", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("event", event),
	))
	defer span.End()

	frame, err := types.NewFrame(event, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode frame")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		span.RecordError(ErrNotConnected)
		span.SetStatus(codes.Error, "relay not connected")
		return ErrNotConnected
	}

	conn := c.conn
	err = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, frame)
	}
	if err != nil {
		c.dropLocked(conn)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write frame")
		return fmt.Errorf("failed to publish %s to room %s: %w", event, roomID, err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "published event")
	return nil
}
