package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.opentelemetry.io/otel"

	"github.com/inacomp/submission-judge/cmd/worker/cmds"
	"github.com/inacomp/submission-judge/internal/logger"
	judgeotel "github.com/inacomp/submission-judge/internal/otel"
	workererrors "github.com/inacomp/submission-judge/internal/worker_errors"
)

var tracer = otel.Tracer("github.com/inacomp/submission-judge/cmd/worker")

func runApp(ctx context.Context) int {
	// Read before the config so startup is traced too
	useOTLP, err := strconv.ParseBool(os.Getenv("JUDGE_LOGGING_USE_OTLP"))
	if err != nil {
		useOTLP = false
	}

	shutdown, err := judgeotel.SetupOTelSDK(ctx, "judge-worker", useOTLP)
	if err != nil {
		logger.Logger.Warn("failed to setup otel sdk", "error", err)
	}
	defer func() {
		if shutdown == nil {
			return
		}
		if fail := shutdown(context.WithoutCancel(ctx)); fail != nil {
			logger.Logger.Warn("no clean shutdown for otel", "error", fail)
		}
	}()

	ctx, span := tracer.Start(ctx, "Worker")
	defer span.End()

	err = cmds.Execute(ctx)
	if err != nil && !workererrors.Expected(err) {
		logger.Logger.ErrorContext(ctx, "error executing subcommands", "error", err)
	}

	return workererrors.ExitCode(err)
}

func main() {
	logger.LogLevel.Set(slog.LevelDebug)
	logger.InitSlog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	code := runApp(ctx)
	cancel()
	os.Exit(code)
}
