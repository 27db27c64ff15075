package routes

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/inacomp/submission-judge/cmd/relay/internal/hub"
	"github.com/inacomp/submission-judge/cmd/relay/internal/ratelimit"
	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/validator"
)

type Options struct {
	AllowedOrigins []string

	// Connection attempts per minute per remote address, zero disables the limit.
	// The counters live in RedisClient so nothing is limited without it.
	PerMinute   int64
	FailOpen    bool
	RedisClient *redis.Client
}

func NewRedisLimiter(
	rdb *redis.Client,
	limiterKey string,
	perMinute int64,
	failOpen bool,
) middleware.RateLimiterConfig {
	logger.Logger.Debug("Setting up rate limiter with Redis", "key", limiterKey, "per_minute", perMinute)

	store := ratelimit.NewRedisLimitStore(ratelimit.RedisLimiterConfig{
		PerMinute:   perMinute,
		RedisClient: rdb,
		LimiterKey:  limiterKey,
		FailOpen:    failOpen,
	})

	return middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, _ error) error {
			return context.JSON(http.StatusForbidden, nil)
		},
		DenyHandler: func(context echo.Context, _ string, _ error) error {
			return context.JSON(http.StatusTooManyRequests, nil)
		},
	}
}

// Non-browser clients send no Origin header and are always accepted. An empty allow list
// only accepts same-host origins.
func originAllowed(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		if slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && len(allowed) == 0 && u.Host == r.Host
	}
}

// BuildEcho serves websocket sessions on /ws/ until ctx is done.
func BuildEcho(ctx context.Context, logger *slog.Logger, h *hub.Hub, opts Options) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(middleware.AddTrailingSlash())

	e.Use(
		otelecho.Middleware("submission-relay"),
		slogecho.NewWithConfig(logger, slogecho.Config{}),
	)
	if len(opts.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: opts.AllowedOrigins}))
	}

	e.GET("/health/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originAllowed(opts.AllowedOrigins),
	}

	var wsMiddleware []echo.MiddlewareFunc
	if opts.PerMinute > 0 && opts.RedisClient != nil {
		wsMiddleware = append(wsMiddleware, middleware.RateLimiterWithConfig(
			NewRedisLimiter(opts.RedisClient, "ws", opts.PerMinute, opts.FailOpen),
		))
	}

	e.GET("/ws/", func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// the upgrader has already written the error response
			return nil
		}

		// hijacked connections outlive server shutdown unless tied to ctx
		sessionCtx, cancel := context.WithCancel(c.Request().Context())
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		h.Serve(sessionCtx, conn)
		return nil
	}, wsMiddleware...)

	return e, nil
}
