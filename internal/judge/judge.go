// Package judge talks to a Judge0 compatible execution service.
package judge

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"

	"github.com/inacomp/submission-judge/internal/types"
)

const instrumentationName = "github.com/inacomp/submission-judge/internal/judge"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

var (
	ErrMalformedResponse = errors.New("malformed judge response")
	// Returned by callers that bound AwaitResult and gave up waiting
	ErrPollTimeout = errors.New("judge did not finish before the poll deadline")
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Client

type Client interface {
	// Submit queues program for execution and returns the submission token.
	Submit(ctx context.Context, program string, languageID string) (string, error)
	// AwaitResult polls until the submission reaches a terminal status or ctx is done.
	AwaitResult(ctx context.Context, token string) (*types.ExecutionOutcome, error)
}

// Judge0 status ids
const (
	statusInQueue           = 1
	statusProcessing        = 2
	statusAccepted          = 3
	statusWrongAnswer       = 4
	statusCompilationError  = 6
	statusRuntimeErrorFirst = 7
	statusRuntimeErrorLast  = 12
)

// StatusFromID maps a Judge0 status id onto the statuses the evaluator branches on.
func StatusFromID(id int) types.JudgeStatus {
	switch {
	case id == statusInQueue:
		return types.JudgeStatusQueued
	case id == statusProcessing:
		return types.JudgeStatusProcessing
	case id == statusAccepted:
		return types.JudgeStatusAccepted
	case id == statusWrongAnswer:
		return types.JudgeStatusWrongAnswer
	case id == statusCompilationError:
		return types.JudgeStatusCompileError
	case id >= statusRuntimeErrorFirst && id <= statusRuntimeErrorLast:
		return types.JudgeStatusRuntimeError
	default:
		return types.JudgeStatusOther
	}
}
