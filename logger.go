package eventhub

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger 为最小日志接口，应用可注入自定义实现。
type Logger interface {
	Info(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, msg string, kv ...any)
}

// zeroLogger 基于 zerolog 的默认实现。
type zeroLogger struct{ l zerolog.Logger }

// NewZerologLogger 适配应用已有的 zerolog.Logger。
func NewZerologLogger(l zerolog.Logger) Logger { return &zeroLogger{l: l} }

func newDefaultLogger(level string) Logger {
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return &zeroLogger{l: zerolog.New(output).Level(lvl).With().Timestamp().Logger()}
}

func (z *zeroLogger) Info(ctx context.Context, msg string, kv ...any) {
	z.l.Info().Fields(kv).Msg(msg)
}

func (z *zeroLogger) Error(ctx context.Context, msg string, kv ...any) {
	z.l.Error().Fields(kv).Msg(msg)
}
