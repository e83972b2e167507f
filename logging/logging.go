package logging

import (
	"context"
	"os"

	"bitbucket.org/kleinnic74/pinboard/consts"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKeyType string

const loggerKey = loggerKeyType("logger")

var rootLogger *zap.Logger

func init() {
	devmode := consts.IsDevMode()
	var core zapcore.Core
	if devmode {
		encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		debugFilter := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.DebugLevel
		})
		core = zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), debugFilter)
	} else {
		encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		infoFilter := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.InfoLevel
		})
		core = zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), infoFilter)
	}
	rootLogger = zap.New(core)
	rootLogger.With(zap.Bool("devmode", devmode)).Info("Logging initialized")
}

// From returns the logger of the current context, if no logger is available, returns the root logger
func From(ctx context.Context) *zap.Logger {
	l := ctx.Value(loggerKey)
	if l == nil {
		return rootLogger
	}
	return l.(*zap.Logger)
}

func SubFrom(ctx context.Context, name string) (*zap.Logger, context.Context) {
	logger := From(ctx).Named(name)
	return logger, Context(ctx, logger)
}

func Context(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = rootLogger
	}
	return context.WithValue(ctx, loggerKey, logger)
}

func FromWithNameAndFields(ctx context.Context, name string, fields ...zapcore.Field) (*zap.Logger, context.Context) {
	logger := From(ctx).With(fields...).Named(name)
	ctx = Context(ctx, logger)
	return logger, ctx
}

func FromWithFields(ctx context.Context, fields ...zapcore.Field) (*zap.Logger, context.Context) {
	logger := From(ctx).With(fields...)
	ctx = Context(ctx, logger)
	return logger, ctx
}
