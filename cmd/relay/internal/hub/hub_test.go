package hub_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inacomp/submission-judge/cmd/relay/internal/hub"
	"github.com/inacomp/submission-judge/internal/events"
	"github.com/inacomp/submission-judge/internal/types"
)

const prefix = "submission-room:"

func serve(t *testing.T, ctx context.Context, h *hub.Hub) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(ctx, conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	//nolint:bodyclose // the handshake response body does not need to be closed
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "failed to connect to hub")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()

	frame, err := types.NewFrame(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func read(t *testing.T, conn *websocket.Conn) types.Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame types.Frame
	require.NoError(t, conn.ReadJSON(&frame), "expected a frame")
	return frame
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no frame")
}

func join(t *testing.T, conn *websocket.Conn, userID, problemID string) {
	t.Helper()

	send(t, conn, types.EventJoinRoom, types.JoinRoomRequest{UserID: userID, ProblemID: problemID})
	frame := read(t, conn)
	require.Equal(t, types.EventRoomJoined, frame.Event)

	var joined types.RoomJoined
	require.NoError(t, json.Unmarshal(frame.Data, &joined))
	require.Equal(t, types.RoomID(userID, problemID), joined.RoomID)
}

func newHub(t *testing.T, opts ...hub.Option) *hub.Hub {
	t.Helper()

	h, err := hub.New(opts...)
	require.NoError(t, err, "failed to create hub")
	return h
}

func TestHub(t *testing.T) {
	t.Run("JoinAck", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h := newHub(t)
		client := dial(t, serve(t, ctx, h))

		join(t, client, "u1", "p1")
		assert.Equal(t, 1, h.Members("u1:p1"))

		// joining twice is harmless
		join(t, client, "u1", "p1")
		assert.Equal(t, 1, h.Members("u1:p1"))
	})

	t.Run("RelayToRoomOnly", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h := newHub(t)
		url := serve(t, ctx, h)

		first := dial(t, url)
		second := dial(t, url)
		other := dial(t, url)
		worker := dial(t, url)

		join(t, first, "u1", "p1")
		join(t, second, "u1", "p1")
		join(t, other, "u2", "p1")

		log := types.NewSubmissionLog("u1:p1", types.LogTypeInfo, "Running Test Case 1...")
		send(t, worker, types.EventSubmissionLog, log)
		send(t, worker, types.EventSubmissionResult, types.NewSubmissionResult("u1:p1", types.ResultStatusSuccess))

		for _, conn := range []*websocket.Conn{first, second} {
			frame := read(t, conn)
			assert.Equal(t, types.EventSubmissionLog, frame.Event)

			var got types.SubmissionLog
			require.NoError(t, json.Unmarshal(frame.Data, &got))
			assert.Equal(t, log, got)

			frame = read(t, conn)
			assert.Equal(t, types.EventSubmissionResult, frame.Event, "frames arrive in publish order")
		}

		assertSilent(t, other)
		assertSilent(t, worker)
	})

	t.Run("Leave", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h := newHub(t)
		url := serve(t, ctx, h)

		client := dial(t, url)
		worker := dial(t, url)

		join(t, client, "u1", "p1")
		send(t, client, types.EventLeaveRoom, types.LeaveRoomRequest{RoomID: "u1:p1"})
		require.Eventually(t, func() bool { return h.Members("u1:p1") == 0 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, 0, h.Rooms(), "empty rooms are removed")

		send(t, worker, types.EventSubmissionLog, types.NewSubmissionLog("u1:p1", types.LogTypeInfo, "x"))
		assertSilent(t, client)
	})

	t.Run("DisconnectLeavesRooms", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h := newHub(t)
		client := dial(t, serve(t, ctx, h))

		join(t, client, "u1", "p1")
		join(t, client, "u1", "p2")
		require.Equal(t, 2, h.Rooms())

		require.NoError(t, client.Close())
		require.Eventually(t, func() bool { return h.Rooms() == 0 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Errors", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h := newHub(t)
		client := dial(t, serve(t, ctx, h))

		tests := []struct {
			name    string
			message string
			event   string
			fields  bool
		}{
			{name: "NotJSON", message: "hello"},
			{name: "UnknownEvent", message: `{"event":"shout","data":{}}`, event: "shout"},
			{
				name:    "JoinMissingProblem",
				message: `{"event":"join-submission-room","data":{"userId":"u1"}}`,
				event:   types.EventJoinRoom,
				fields:  true,
			},
			{
				name:    "LogBadType",
				message: `{"event":"submission-log","data":{"roomId":"u1:p1","log":{"message":"x","type":"loud"}}}`,
				event:   types.EventSubmissionLog,
				fields:  true,
			},
			{
				name:    "LeaveMalformedRoom",
				message: `{"event":"leave-submission-room","data":{"roomId":"u1"}}`,
				event:   types.EventLeaveRoom,
				fields:  true,
			},
			{
				name:    "ResultNotObject",
				message: `{"event":"submission-result","data":"failed"}`,
				event:   types.EventSubmissionResult,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(tt.message)))

				frame := read(t, client)
				require.Equal(t, types.EventError, frame.Event)

				var got types.Error
				require.NoError(t, json.Unmarshal(frame.Data, &got))
				assert.NotEmpty(t, got.Message)
				assert.Equal(t, tt.event, got.Event)
				if tt.fields {
					assert.NotNil(t, got.Fields)
				}
			})
		}

		assert.Equal(t, 0, h.Rooms())
	})
}

func TestHubRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newReplica := func() (*hub.Hub, string) {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		h := newHub(t, hub.WithRedis(rdb, prefix))
		go func() {
			_ = h.Subscribe(ctx)
		}()
		return h, serve(t, ctx, h)
	}

	_, urlA := newReplica()
	_, urlB := newReplica()

	require.Eventually(t, func() bool {
		return mr.PubSubNumPat() == 2
	}, 2*time.Second, 10*time.Millisecond, "replicas did not subscribe")

	client := dial(t, urlA)
	join(t, client, "u1", "p1")

	t.Run("AcrossReplicas", func(t *testing.T) {
		worker := dial(t, urlB)
		send(t, worker, types.EventSubmissionResult, types.NewSubmissionResult("u1:p1", types.ResultStatusFailed))

		frame := read(t, client)
		assert.Equal(t, types.EventSubmissionResult, frame.Event)

		var got types.SubmissionResult
		require.NoError(t, json.Unmarshal(frame.Data, &got))
		assert.Equal(t, types.ResultStatusFailed, got.Status)
	})

	t.Run("FromRedisPublisher", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		publisher := events.NewRedisPublisher(rdb, prefix)
		err := publisher.Publish(ctx, "u1:p1", types.EventSubmissionLog,
			types.NewSubmissionLog("u1:p1", types.LogTypeSuccess, "✅ Test Case 1 Passed"))
		require.NoError(t, err)

		frame := read(t, client)
		assert.Equal(t, types.EventSubmissionLog, frame.Event)

		var got types.SubmissionLog
		require.NoError(t, json.Unmarshal(frame.Data, &got))
		assert.Equal(t, "✅ Test Case 1 Passed", got.Log.Message)
	})
}

func TestSubscribeWithoutRedis(t *testing.T) {
	require.Error(t, newHub(t).Subscribe(context.Background()))
}
