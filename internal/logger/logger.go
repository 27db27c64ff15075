package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	slogotel "github.com/remychantenay/slog-otel"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

var LogLevel = new(slog.LevelVar)

var sloghandler = slogotel.NewOtelHandler(slogotel.WithNoTraceEvents(true))
var Handler = newHandler(os.Stderr, FormatJSON)
var Logger = slog.New(Handler)

func newHandler(w io.Writer, format string) slog.Handler {
	var base slog.Handler
	switch format {
	case FormatConsole:
		base = tint.NewHandler(w, &tint.Options{
			AddSource:  true,
			Level:      LogLevel,
			TimeFormat: time.TimeOnly,
		})
	default:
		base = slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: LogLevel})
	}

	return sloghandler(base)
}

func InitSlog() {
	slog.SetDefault(Logger)
	LogLevel.Set(slog.LevelDebug)
}

// SetFormat swaps the output format of the global logger. Not safe to call while other
// goroutines are logging.
func SetFormat(format string) {
	Handler = newHandler(os.Stderr, format)
	Logger = slog.New(Handler)
	slog.SetDefault(Logger)
}
