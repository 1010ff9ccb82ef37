package rediswork

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger sends DB events to a zap sugared logger under the "rediswork" name.
//
//	logger, err := rediswork.NewProductionZapLogger()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	db, err := rediswork.Open(ctx, rediswork.WithLogger(logger), ...)
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// ZapConfig returns the zap configuration used by the constructors and by
// redisworkctl: JSON with ISO8601 timestamps, or colored console output at
// debug level when development is set.
func ZapConfig(development bool) zap.Config {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// NewZapLogger wraps logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return NewZapLoggerFromSugar(logger.Named("rediswork").Sugar())
}

// NewZapLoggerFromSugar wraps an already named sugared logger as is.
func NewZapLoggerFromSugar(logger *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

func NewProductionZapLogger() (*ZapLogger, error) {
	return buildZapLogger(false)
}

func NewDevelopmentZapLogger() (*ZapLogger, error) {
	return buildZapLogger(true)
}

func buildZapLogger(development bool) (*ZapLogger, error) {
	logger, err := ZapConfig(development).Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(logger), nil
}

// With returns a logger carrying fields on every entry, such as a flush id.
func (l *ZapLogger) With(fields ...interface{}) Logger {
	return &ZapLogger{logger: l.logger.With(fields...)}
}

func (l *ZapLogger) Debug(msg string, fields ...interface{}) { l.logger.Debugw(msg, fields...) }
func (l *ZapLogger) Info(msg string, fields ...interface{})  { l.logger.Infow(msg, fields...) }
func (l *ZapLogger) Warn(msg string, fields ...interface{})  { l.logger.Warnw(msg, fields...) }
func (l *ZapLogger) Error(msg string, fields ...interface{}) { l.logger.Errorw(msg, fields...) }

// Sync flushes buffered entries. Call it before exit.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
