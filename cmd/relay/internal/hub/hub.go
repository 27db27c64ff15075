// Package hub tracks which websocket clients are in which submission room and relays frames
// between them.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/types"
	"github.com/inacomp/submission-judge/internal/validator"
)

const instrumentationName = "github.com/inacomp/submission-judge/cmd/relay/internal/hub"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

var validate = validator.Create()

type Hub struct {
	rooms *xsync.MapOf[string, mapset.Set[*Client]]

	// Relayed frames go through redis pub/sub when set
	rdb    *redis.Client
	prefix string

	relayed metric.Int64Counter
}

type Option func(*Hub)

// WithRedis fans relayed frames out through redis channels named prefix + roomID.
func WithRedis(rdb *redis.Client, prefix string) Option {
	return func(h *Hub) {
		h.rdb = rdb
		h.prefix = prefix
	}
}

func New(opts ...Option) (*Hub, error) {
	relayed, err := meter.Int64Counter(
		"relay.frames",
		metric.WithDescription("Frames relayed to room members, by event"),
	)
	if err != nil {
		return nil, err
	}

	h := &Hub{
		rooms:   xsync.NewMapOf[string, mapset.Set[*Client]](),
		relayed: relayed,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Members is the number of clients in roomID.
func (h *Hub) Members(roomID string) int {
	members, ok := h.rooms.Load(roomID)
	if !ok {
		return 0
	}
	return members.Cardinality()
}

// Rooms is the number of rooms with at least one member.
func (h *Hub) Rooms() int {
	return h.rooms.Size()
}

func (h *Hub) join(c *Client, roomID string) {
	h.rooms.Compute(roomID, func(members mapset.Set[*Client], loaded bool) (mapset.Set[*Client], bool) {
		if !loaded {
			members = mapset.NewSet[*Client]()
		}
		members.Add(c)
		return members, false
	})
	c.rooms.Add(roomID)
}

func (h *Hub) leave(c *Client, roomID string) {
	h.rooms.Compute(roomID, func(members mapset.Set[*Client], loaded bool) (mapset.Set[*Client], bool) {
		if !loaded {
			return members, true
		}
		members.Remove(c)
		return members, members.IsEmpty()
	})
	c.rooms.Remove(roomID)
}

func (h *Hub) leaveAll(c *Client) {
	for _, roomID := range c.rooms.ToSlice() {
		h.leave(c, roomID)
	}
}

// Relay sends frame to every member of roomID, on every replica when redis is configured.
func (h *Hub) Relay(ctx context.Context, roomID string, frame []byte) error {
	ctx, span := tracer.Start(ctx, "Hub.Relay", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.Bool("redis", h.rdb != nil),
	))
	defer span.End()

	if h.rdb == nil {
		h.deliver(roomID, frame)
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "delivered locally")
		return nil
	}

	if err := h.rdb.Publish(ctx, h.prefix+roomID, frame).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish frame")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "published frame")
	return nil
}

func (h *Hub) deliver(roomID string, frame []byte) {
	members, ok := h.rooms.Load(roomID)
	if !ok {
		return
	}

	members.Each(func(c *Client) bool {
		if !c.enqueue(frame) {
			logger.Logger.Warn("dropped slow client", "client", c.ID, "room", roomID)
		}
		return false
	})
}

// Subscribe delivers frames published by any replica or worker to local room members. It
// returns once ctx is done.
func (h *Hub) Subscribe(ctx context.Context) error {
	if h.rdb == nil {
		return errors.New("hub has no redis client")
	}

	pubsub := h.rdb.PSubscribe(ctx, h.prefix+"*")
	defer pubsub.Close()

	// Wait for the subscription before reporting readiness
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	logger.Logger.InfoContext(ctx, "subscribed to room channels", "pattern", h.prefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.deliver(strings.TrimPrefix(msg.Channel, h.prefix), []byte(msg.Payload))
		}
	}
}

// Serve runs conn until it is closed by either side or ctx is done.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	c := newClient(conn)
	logger.Logger.InfoContext(ctx, "client connected", "client", c.ID, "remote", conn.RemoteAddr().String())

	go c.writePump()
	defer func() {
		h.leaveAll(c)
		c.close()
		logger.Logger.InfoContext(ctx, "client disconnected", "client", c.ID)
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.close()
			_ = conn.Close()
		case <-c.done:
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Logger.WarnContext(ctx, "client read failed", "client", c.ID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		h.handle(ctx, c, message)
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, message []byte) {
	ctx, span := tracer.Start(ctx, "Hub.handle", trace.WithAttributes(
		attribute.String("client.id", c.ID),
	))
	defer span.End()

	var frame types.Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		h.reply(c, types.EventError, types.StringError("frame is not valid json"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode frame")
		return
	}
	span.SetAttributes(attribute.String("event", frame.Event))

	var err error
	switch frame.Event {
	case types.EventJoinRoom:
		var req types.JoinRoomRequest
		if err = decode(frame.Data, &req); err == nil {
			roomID := types.RoomID(req.UserID, req.ProblemID)
			h.join(c, roomID)
			h.reply(c, types.EventRoomJoined, types.RoomJoined{RoomID: roomID})
			logger.Logger.DebugContext(ctx, "client joined room", "client", c.ID, "room", roomID)
		}
	case types.EventLeaveRoom:
		var req types.LeaveRoomRequest
		if err = decode(frame.Data, &req); err == nil {
			h.leave(c, req.RoomID)
		}
	case types.EventSubmissionLog:
		var payload types.SubmissionLog
		if err = decode(frame.Data, &payload); err == nil {
			err = h.relay(ctx, frame.Event, payload.RoomID, message)
		}
	case types.EventSubmissionResult:
		var payload types.SubmissionResult
		if err = decode(frame.Data, &payload); err == nil {
			err = h.relay(ctx, frame.Event, payload.RoomID, message)
		}
	default:
		h.reply(c, types.EventError, types.StringError("unknown event").ForEvent(frame.Event))
		span.RecordError(nil)
		span.SetStatus(codes.Error, "unknown event")
		return
	}

	if err != nil {
		h.reply(c, types.EventError, replyError(err).ForEvent(frame.Event))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to handle frame")
		return
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "handled frame")
}

func (h *Hub) relay(ctx context.Context, event, roomID string, frame []byte) error {
	if err := h.Relay(ctx, roomID, frame); err != nil {
		return err
	}
	h.relayed.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
	return nil
}

func (h *Hub) reply(c *Client, event string, payload any) {
	frame, err := types.NewFrame(event, payload)
	if err != nil {
		logger.Logger.Error("failed to encode reply", "event", event, "error", err)
		return
	}
	c.enqueue(frame)
}

func decode(data json.RawMessage, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return validate.Validate(out)
}

func replyError(err error) types.Error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return types.StringError("payload is not valid json")
	}
	if e := types.ValidationError(err); e.Fields != nil {
		return e
	}
	return types.StringError(err.Error())
}
