package logsvc

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/trezcool/lingo/core"
	"github.com/trezcool/lingo/core/user"
)

// callerSkip skips the ConsoleLogger/RollbarLogger method wrapping each zap call.
const callerSkip = 1

// NewZap builds a sugared zap logger: JSON in production, console otherwise.
func NewZap(conf *core.Config) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch strings.ToUpper(conf.Env) {
	case "PROD", "QA":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	if conf.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := cfg.Build(zap.AddCallerSkip(callerSkip))
	if err != nil {
		return nil, err
	}
	return zl.Sugar().With("app", conf.AppName, "build", conf.Build), nil
}

// keysAndValues flattens the logger args (error, map[string]interface{}, user.User) into zap pairs.
func keysAndValues(args []interface{}) []interface{} {
	kvs := make([]interface{}, 0, len(args)*2)
	for i, arg := range args {
		switch a := arg.(type) {
		case nil:
		case error:
			kvs = append(kvs, "error", a.Error())
		case map[string]interface{}:
			for k, v := range a {
				kvs = append(kvs, k, v)
			}
		case user.User:
			kvs = append(kvs, "userId", a.ID, "username", a.Username)
		default:
			kvs = append(kvs, fmt.Sprintf("arg%d", i), a)
		}
	}
	return kvs
}

// ConsoleLogger only writes to zap. Used in dev and tests.
type ConsoleLogger struct {
	zl *zap.SugaredLogger
}

var _ core.Logger = (*ConsoleLogger)(nil)

func NewConsoleLogger(zl *zap.SugaredLogger) *ConsoleLogger {
	return &ConsoleLogger{zl: zl}
}

// NewNopLogger discards everything.
func NewNopLogger() *ConsoleLogger {
	return &ConsoleLogger{zl: zap.NewNop().Sugar()}
}

func (l ConsoleLogger) Debug(msg string, args ...interface{}) { l.zl.Debugw(msg, keysAndValues(args)...) }
func (l ConsoleLogger) Info(msg string, args ...interface{})  { l.zl.Infow(msg, keysAndValues(args)...) }
func (l ConsoleLogger) Warn(msg string, args ...interface{})  { l.zl.Warnw(msg, keysAndValues(args)...) }
func (l ConsoleLogger) Error(msg string, args ...interface{}) { l.zl.Errorw(msg, keysAndValues(args)...) }
func (l ConsoleLogger) Fatal(msg string, args ...interface{}) { l.zl.Fatalw(msg, keysAndValues(args)...) }

func (l ConsoleLogger) Sync() {
	_ = l.zl.Sync()
}
