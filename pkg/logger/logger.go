package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var once sync.Once

var log zerolog.Logger

// Get returns the process wide logger. LOG_LEVEL selects the level, INFO by default.
func Get() zerolog.Logger {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		logLevel, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
		if err != nil || logLevel == zerolog.NoLevel {
			logLevel = zerolog.InfoLevel // default to INFO
		}

		var output io.Writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}

		log = zerolog.New(output).Level(logLevel).With().Timestamp().Logger()
	})

	return log
}

type ctxKey struct{}

const CorrelationIDField = "correlation_id"

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// GetWithCtx returns the logger tagged with the correlation id of ctx, if any.
func GetWithCtx(ctx context.Context) zerolog.Logger {
	l := Get()

	if id := CorrelationID(ctx); id != "" {
		return l.With().Str(CorrelationIDField, id).Logger()
	}

	return l
}
