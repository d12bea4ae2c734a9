package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

var (
	ctxLoggerKey = loggerKey{}
	loggingLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgBlue)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	fatalColor = color.New(color.FgHiRed)
	nameColor  = color.New(color.FgHiBlue)
	timeColor  = color.New(color.Faint)
)

func NewLogger() (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.ConsoleSeparator = " "
	cfg.EncoderConfig.EncodeLevel = consoleColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = consoleTimeEncoder
	cfg.EncoderConfig.EncodeName = func(s string, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(nameColor.Sprint(s))
	}
	cfg.Level = loggingLevel

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger.Sugar(), nil
}

func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey, logger)
}

// FromContext returns the logger carried by ctx, or a no-op logger so
// callers never have to nil-check
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(ctxLoggerKey).(*zap.SugaredLogger); ok {
		return logger
	}
	return zap.NewNop().Sugar()
}

func SetDebug() {
	loggingLevel.SetLevel(zap.DebugLevel)
}

func consoleColorLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString(debugColor.Sprint("D"))
	case zapcore.InfoLevel:
		enc.AppendString(infoColor.Sprint("I"))
	case zapcore.WarnLevel:
		enc.AppendString(warnColor.Sprint("W"))
	case zapcore.ErrorLevel:
		enc.AppendString(errorColor.Sprint("E"))
	case zapcore.FatalLevel, zapcore.PanicLevel:
		enc.AppendString(fatalColor.Sprint("F"))
	default:
		enc.AppendString("U")
	}
}

func consoleTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(timeColor.Sprint(t.Format("2006-01-02 15:04:05")))
}
