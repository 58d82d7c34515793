package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/user"
)

// RollbarLogger reports to Rollbar and writes every entry to a local zap sink.
type RollbarLogger struct {
	sink   *zap.SugaredLogger
	report bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger configures the global Rollbar client. name tags the local sink, e.g. "api" or "db".
func NewRollbarLogger(sink *zap.SugaredLogger, name string, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{sink: sink.Named(name), report: true}
}

// NewZapSink builds the local sink: JSON in production, console otherwise.
func NewZapSink(conf *core.Config) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if conf.Debug || conf.TestMode {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return l.Sugar().With("app", conf.AppName, "env", conf.Env), nil
}

// NewNopLogger discards everything. Used in tests.
func NewNopLogger() *RollbarLogger {
	return &RollbarLogger{sink: zap.NewNop().Sugar()}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, kvs []interface{}) {
	var usrSet bool
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if !usrSet { // only set one User
				if l.report {
					rollbar.SetPerson(v.UID, v.Name, v.Email)
				}
				kvs = append(kvs, "uid", v.UID)
				usrSet = true
			}
		case error:
			rbArgs = append(rbArgs, v)
			kvs = append(kvs, "error", v)
		case map[string]interface{}:
			rbArgs = append(rbArgs, v)
			kvs = append(kvs, "extra", v)
		default:
			rbArgs = append(rbArgs, v)
			kvs = append(kvs, "arg", v)
		}
	}
	if !usrSet && l.report {
		rollbar.ClearPerson()
	}
	return rbArgs, kvs
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.report {
		rollbar.Debug(rbArgs...)
	}
	l.sink.Debugw(msg, kvs...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.report {
		rollbar.Info(rbArgs...)
	}
	l.sink.Infow(msg, kvs...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.report {
		rollbar.Warning(rbArgs...)
	}
	l.sink.Warnw(msg, kvs...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.report {
		rollbar.Error(rbArgs...)
	}
	l.sink.Errorw(msg, kvs...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	if l.report {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	l.sink.Fatalw(msg, kvs...)
}

// Sync flushes the local sink and waits for pending Rollbar reports.
func (l RollbarLogger) Sync() {
	_ = l.sink.Sync()
	if l.report {
		rollbar.Wait()
	}
}
