package types

import "encoding/json"

// Event names shared by the worker and the relay. They are part of the public contract with
// browser clients and must not change.
const (
	EventJoinRoom         = "join-submission-room"
	EventLeaveRoom        = "leave-submission-room"
	EventRoomJoined       = "room-joined"
	EventSubmissionLog    = "submission-log"
	EventSubmissionResult = "submission-result"
	EventError            = "error"
)

type LogType string

const (
	LogTypeInfo    LogType = "info"
	LogTypeSuccess LogType = "success"
	LogTypeError   LogType = "error"
)

type (
	LogEntry struct {
		Message string  `json:"message" validate:"required"`
		Type    LogType `json:"type"    validate:"required,oneof=info success error"`
	}

	SubmissionLog struct {
		RoomID string   `json:"roomId" validate:"required,roomid"`
		Log    LogEntry `json:"log"    validate:"required"`
	}

	SubmissionResult struct {
		RoomID string       `json:"roomId" validate:"required,roomid"`
		Status ResultStatus `json:"status" validate:"required,oneof=success failed"`
	}

	RoomJoined struct {
		RoomID string `json:"roomId"`
	}

	JoinRoomRequest struct {
		UserID    string `json:"userId"    validate:"required"`
		ProblemID string `json:"problemId" validate:"required"`
	}

	LeaveRoomRequest struct {
		RoomID string `json:"roomId" validate:"required,roomid"`
	}

	// Websocket wire envelope
	Frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
)

func NewSubmissionLog(roomID string, logType LogType, message string) SubmissionLog {
	return SubmissionLog{
		RoomID: roomID,
		Log:    LogEntry{Message: message, Type: logType},
	}
}

func NewSubmissionResult(roomID string, status ResultStatus) SubmissionResult {
	return SubmissionResult{RoomID: roomID, Status: status}
}

// NewFrame serializes payload into an envelope for event.
func NewFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Frame{Event: event, Data: data})
}
