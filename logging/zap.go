package logging

import (
	"go.uber.org/zap"

	"github.com/arloliu/sharder/types"
)

// ZapLogger implements types.Logger on top of a zap.SugaredLogger.
//
// The types.Logger method set mirrors the SugaredLogger's *w family, so the
// adapter is a straight pass-through with no field translation.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// Compile-time assertion that ZapLogger implements Logger.
var _ types.Logger = (*ZapLogger)(nil)

// NewZap creates a zap-based logger from a base zap.Logger.
//
// Parameters:
//   - logger: The zap.Logger to adapt; its sugared form is used
//
// Returns:
//   - *ZapLogger: A new logger instance wrapping logger.Sugar()
//
// Example:
//
//	zl, _ := zap.NewProduction()
//	defer zl.Sync()
//	mgr, err := sharder.NewManager(cfg, sharder.WithLogger(logging.NewZap(zl)))
func NewZap(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

// NewZapSugared creates a zap-based logger from an existing SugaredLogger.
func NewZapSugared(sugar *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{sugar: sugar}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal-level message with optional key-value pairs, then
// calls os.Exit(1) via zap.
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	l.sugar.Fatalw(msg, keysAndValues...)
}
