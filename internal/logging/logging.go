package logging

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ServiceMeshDemo/internal/config"
)

// New builds the process logger. Production config writes JSON to stdout
// with UTC ISO8601 timestamps; development switches to the console encoder.
func New(cfg config.LoggingConfig, service string) (*zap.SugaredLogger, error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.OutputPaths = []string{"stdout"}

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, eris.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, eris.Wrap(err, "failed to build logger")
	}
	return logger.Sugar().With("service", service), nil
}
