package server

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/hertz-contrib/cors"
	hertzslog "github.com/hertz-contrib/logger/slog"

	"github.com/hupe1980/docchat/logging"
)

// requestLogger logs one line per request after it completes.
func requestLogger(logger logging.Logger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		status := c.Response.StatusCode()
		args := []any{
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if status >= 500 {
			logger.Warn("http.request", args...)
			return
		}
		logger.Debug("http.request", args...)
	}
}

// corsMiddleware answers preflights and sets CORS headers for origins. A "*"
// entry allows every origin.
func corsMiddleware(origins []string) app.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", SessionHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// SetHertzLogger routes hertz's internal logs through slog at the given level.
func SetHertzLogger(w io.Writer, level logging.LogLevel) {
	levelVar := &slog.LevelVar{}
	switch level {
	case logging.LogLevelDebug:
		levelVar.Set(slog.LevelDebug)
	case logging.LogLevelWarn:
		levelVar.Set(slog.LevelWarn)
	case logging.LogLevelError:
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(w),
		hertzslog.WithLevel(levelVar),
	))
}
