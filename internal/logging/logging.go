// Package logging builds the slog loggers used by the CLI and the Lambda
// handler. Loggers are constructed once at startup and passed down; nothing in
// this module logs through a package-level default.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of any attribute whose key is sensitive.
const RedactedValue = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the log sink.
// Matching is case-insensitive and by substring.
var sensitiveKeys = []string{
	"webhook_url",
	"webhook",
	"secret",
	"token",
	"password",
	"secret_access_key",
	"session_token",
}

// New returns a structured logger writing to w. format is "json" or "text";
// anything other than "text" yields JSON, which is what CloudWatch Logs
// indexes best.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: redact,
	}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops every record. Tests use it where log
// output is irrelevant.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps a level name to slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsSensitiveKey reports whether an attribute key names a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString && a.Value.String() != "" && IsSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactedValue)
	}
	return a
}
