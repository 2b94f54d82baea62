package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Audit emits a structured audit log entry for security-relevant events
// (webhook signature rejections, PIN throttles, admin logins). Attrs must
// never carry decrypted subscriber fields or destination phone numbers.
func Audit(ctx context.Context, event, outcome string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "fail", "failed", "failure", "error":
		level = slog.LevelWarn
	}
	logger := slog.Default().With(
		"type", "audit",
		"event", event,
		"outcome", outcome,
	)
	base := RequestAttrs(ctx)
	if len(base) > 0 {
		attrs = append(base, attrs...)
	}
	if len(attrs) == 0 {
		logger.Log(ctx, level, "audit")
		return
	}
	logger.LogAttrs(ctx, level, "audit", attrs...)
}
