package types

import "time"

const (
	ExitNormal  int = 0
	ExitErrored int = 1
	// The job was evaluated and at least one test case did not pass
	ExitFailed int = 2
)

// Milliseconds since the unix epoch
type UnixMilli int64

func NowUnixMilli() UnixMilli {
	return UnixMilli(time.Now().UTC().UnixMilli())
}
