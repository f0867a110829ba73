package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how field values are scrubbed before they reach the sink.
type Options struct {
	Level string
	// Redact replaces secrets (tokens, pins, api keys) with a placeholder.
	Redact bool
	// HashSalt is mixed into hashed identifiers (user ids, confirmation codes).
	HashSalt string
}

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	opts          Options
}

// New builds a logger for the given mode with redaction on.
func New(mode string) (*Logger, error) {
	return NewWithOptions(mode, Options{Level: "debug", Redact: true})
}

func NewWithOptions(mode string, opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "test", "nop":
		return &Logger{SugaredLogger: zap.NewNop().Sugar(), opts: opts}, nil
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(opts.Level))
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar(), opts: opts}, nil
}

func parseLevel(raw string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(raw)))); err != nil {
		return zapcore.DebugLevel
	}
	return lvl
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.scrub(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.scrub(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.scrub(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.scrub(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.scrub(keysAndValues)...), opts: l.opts}
}

func (l *Logger) scrub(kv []interface{}) []interface{} {
	if len(kv) == 0 || !l.opts.Redact {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := fmt.Sprint(kv[i])
		out = append(out, key, l.scrubValue(strings.ToLower(strings.TrimSpace(key)), kv[i+1]))
	}
	return out
}

func (l *Logger) scrubValue(key string, val interface{}) interface{} {
	switch {
	case isSecretKey(key):
		return "[REDACTED]"
	case isIdentityKey(key):
		return hashValue(l.opts.HashSalt, val)
	}
	if s, ok := val.(string); ok && strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return "[REDACTED]"
	}
	return val
}

func isSecretKey(key string) bool {
	for _, frag := range []string{"token", "authorization", "secret", "api_key", "apikey", "pin", "password"} {
		if strings.Contains(key, frag) {
			return true
		}
	}
	return false
}

func isIdentityKey(key string) bool {
	return key == "user_id" || strings.HasSuffix(key, "_user_id") || key == "confirmation_code"
}

func hashValue(salt string, val interface{}) string {
	raw := strings.TrimSpace(fmt.Sprint(val))
	if raw == "" || val == nil {
		return ""
	}
	h := sha256.New()
	_, _ = h.Write([]byte(salt))
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}
