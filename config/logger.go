package config

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger names of the long-running components.
const (
	LoggerServerSocket   = "SERVER-SOCKET"
	LoggerClientSocket   = "CLIENT-SOCKET"
	LoggerGameServer     = "GAME-SERVER"
	LoggerSessionManager = "SESSION-MANAGER"
	LoggerScoreboard     = "SCOREBOARD"
	LoggerAPI            = "API"
	LoggerClient         = "CLIENT"
)

// NewLogger builds a console-encoded SugaredLogger. With a file path the
// output goes to a rolling file, otherwise to w (stderr when nil).
func NewLogger(filePath, level string, w io.Writer) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var ws zapcore.WriteSyncer
	switch {
	case filePath != "":
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		})
	case w != nil:
		ws = zapcore.AddSync(w)
	default:
		ws = zapcore.Lock(os.Stderr)
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		EncodeName:    zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, lvl)

	return zap.New(core, zap.AddCaller()).Sugar(), nil
}
