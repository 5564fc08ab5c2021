package logger

import (
	"os"

	"go.uber.org/zap"
)

// Log 全局日志器。默认 no-op，进程入口调用 Init 后生效。
var Log = zap.NewNop().Sugar()

// Init builds the global sugared logger. CHASE_DEBUG=1 switches to the
// development config for local runs.
func Init() {
	var (
		logger *zap.Logger
		err    error
	)
	if os.Getenv("CHASE_DEBUG") == "1" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// Sync flushes buffered log entries, for use on shutdown.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
