// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr in the given format ("json" or
// "console"). When file is non-empty, JSON lines are also appended there.
func New(level, format, file string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var stderrEncoder zapcore.Encoder
	switch format {
	case "json", "":
		stderrEncoder = zapcore.NewJSONEncoder(encoderCfg)
	case "console":
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		stderrEncoder = zapcore.NewConsoleEncoder(consoleCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (want json or console)", format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stderrEncoder, zapcore.Lock(os.Stderr), lvl),
	}

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), lvl))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.Fields(zap.Int("pid", os.Getpid())),
	), nil
}
