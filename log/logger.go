// Package log is the structured logger for receive sessions.
//
// Entries are JSON lines on stderr (timestamp, level, message) carrying
// the session_id and device of the session. Call-site fields are flattened
// into the entry in key order. Sugar gives printf-style logging for
// console echo and other CLI surfaces.
package log

import (
	"io"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/sdlink/types"
)

// Logger writes structured entries with session context.
type Logger struct {
	zap *zap.Logger
}

// NewLogger logs everything to stderr.
func NewLogger(session *types.SessionMeta) *Logger {
	return NewLoggerWithWriter(session, os.Stderr, zapcore.DebugLevel)
}

// NewLoggerWithWriter creates a logger writing entries at or above level
// to w. A nil session omits the context fields.
func NewLoggerWithWriter(session *types.SessionMeta, w io.Writer, level zapcore.Level) *Logger {
	encoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
	z := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level))
	if session != nil {
		z = z.With(zap.String("session_id", session.SessionID), zap.String("device", session.Device))
	}
	return &Logger{zap: z}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// ParseLevel converts debug, info, warn or error to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	return zapcore.ParseLevel(name)
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{zap: l.zap.With(zapFields(fields)...)}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zapFields(fields)...)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zapFields(fields)...)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zapFields(fields)...)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zapFields(fields)...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a printf-style logger sharing this logger's context.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.zap.Sugar()
}

// zapFields converts a field bag in key order so entries are stable.
func zapFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
