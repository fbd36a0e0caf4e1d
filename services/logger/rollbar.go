package logsvc

import (
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/user"
)

// RollbarLogger prints every entry to std and reports it to rollbar.
// Each logger owns its rollbar client so that the API and DB loggers can be toggled separately.
type RollbarLogger struct {
	std    *log.Logger
	client *rollbar.Client
	debug  bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger reports to rollbar and prints to std. Reporting is disabled in debug mode or without a token.
func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.New(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, conf.WorkDir)
	client.SetStackTracer(errors.StackTracer)
	client.SetEnabled(!conf.Debug && conf.RollbarToken != "")
	return &RollbarLogger{std: std, client: client, debug: conf.Debug}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.client.SetEnabled(enabled)
}

// Close waits for the queued reports to be sent.
func (l *RollbarLogger) Close() {
	l.client.Wait()
}

// report sends msg to rollbar. args may hold an error, a map[string]interface{} of extras,
// and the acting user.User, which becomes the rollbar person.
func (l *RollbarLogger) report(level, msg string, args []interface{}) {
	var (
		err    error
		usr    *user.User
		extras = map[string]interface{}{}
	)
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			if err == nil {
				err = a
			}
		case user.User:
			if usr == nil {
				usr = &a
			}
		case map[string]interface{}:
			for k, v := range a {
				extras[k] = v
			}
		}
	}

	if usr != nil && usr.ID != 0 {
		l.client.SetPerson(strconv.Itoa(usr.ID), usr.Username, usr.Email)
	} else {
		l.client.ClearPerson()
	}
	if err == nil {
		l.client.MessageWithExtras(level, msg, extras)
		return
	}
	extras["message"] = msg
	l.client.ErrorWithExtras(level, err, extras)
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		if _, ok := arg.(user.User); ok {
			continue
		}
		l.std.Printf("%+v\n", arg)
	}
}

// Debug entries are only printed in debug mode and never reported.
func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.print("DEBUG", msg, args)
	}
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.report(rollbar.INFO, msg, args)
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.report(rollbar.WARN, msg, args)
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.report(rollbar.ERR, msg, args)
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	l.print("FATAL", msg, args)
	l.client.Wait()
	l.std.Fatal(msg)
}
