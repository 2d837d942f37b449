package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry written by loggers from New.
const ServiceName = "jobscout"

// Options control how the application logger renders entries.
type Options struct {
	JSON  bool
	Debug bool
	// Output defaults to stderr so command output on stdout stays machine readable.
	Output string
}

func (o Options) config() zap.Config {
	level := zapcore.InfoLevel
	if o.Debug {
		level = zapcore.DebugLevel
	}

	encoding := "console"
	if o.JSON {
		encoding = "json"
	}

	output := o.Output
	if output == "" {
		output = "stderr"
	}

	return zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    map[string]any{"service": ServiceName},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}
}

// New builds the application logger.
func New(opts Options) (*zap.Logger, error) {
	return opts.config().Build()
}
