package logging

import (
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/quickquid/internal/config"
)

// Setup initializes the global logger based on configuration
func Setup(cfg *config.LoggingConfig, env string) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer
	if cfg.Format == "json" || env == "production" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "quickquid").
		Logger()
}

// NewLogger creates a new logger with additional context
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// RequestLogger is an echo middleware for structured request logging
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				// let echo's error handler write the status before we read it
				c.Error(err)
			}

			res := c.Response()
			event := log.Info()
			if res.Status >= 500 {
				event = log.Error()
			} else if res.Status >= 400 {
				event = log.Warn()
			}

			requestID := res.Header().Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = req.Header.Get(echo.HeaderXRequestID)
			}

			event.
				Str("request_id", requestID).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("query", req.URL.RawQuery).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("client_ip", c.RealIP()).
				Str("user_agent", req.UserAgent()).
				Int64("body_size", res.Size).
				Msg("HTTP request")

			return nil
		}
	}
}

// LogTransition records a lifecycle change of a marketplace entity
func LogTransition(logger zerolog.Logger, entity, id, from, to, actor string) {
	logger.Debug().
		Str("entity", entity).
		Str("id", id).
		Str("from", from).
		Str("to", to).
		Str("actor", actor).
		Msg("state transition")
}

// SanitizeForLog truncates free text such as request messages to maxLen runes
// before logging
func SanitizeForLog(data string, maxLen int) string {
	if utf8.RuneCountInString(data) <= maxLen {
		return data
	}
	runes := []rune(data)
	return string(runes[:maxLen]) + "...[truncated]"
}
