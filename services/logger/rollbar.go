package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/agenda/core"
	"github.com/trezcool/agenda/core/user"
)

// Extras keys set by the logger itself.
const (
	ExtraCallerID  = "caller_id"
	ExtraComponent = "component"
)

// RollbarLogger reports to rollbar and mirrors every message to a std logger.
// Args may hold an error, map[string]interface{} extras and the user.User the message relates to.
type RollbarLogger struct {
	std    *log.Logger
	fields map[string]interface{} // sent along every message
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Address)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

// Enable turns reporting to rollbar on or off; messages are always printed to std.
func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// With returns a logger sharing l's output that adds fields to the extras of every message.
func (l *RollbarLogger) With(fields map[string]interface{}) *RollbarLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RollbarLogger{std: l.std, fields: merged}
}

type entry struct {
	msg    string
	err    error
	extras map[string]interface{}
	other  []interface{}
}

// parse sorts args out and sets the rollbar person.
// Extras maps are merged; a user without a username is an anonymous caller and only lands in the extras.
func (l *RollbarLogger) parse(msg string, args []interface{}) entry {
	e := entry{msg: msg, extras: make(map[string]interface{}, len(l.fields))}
	for k, v := range l.fields {
		e.extras[k] = v
	}

	var usrSet bool
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if usrSet || a.ID == "" { // only set one User
				continue
			}
			usrSet = true
			if a.Username == "" {
				e.extras[ExtraCallerID] = a.ID
				continue
			}
			rollbar.SetPerson(a.ID, a.Username, "")
		case map[string]interface{}:
			for k, v := range a {
				e.extras[k] = v
			}
		case error:
			if e.err == nil {
				e.err = a
			} else {
				e.other = append(e.other, a)
			}
		default:
			e.other = append(e.other, a)
		}
	}
	if _, anonymous := e.extras[ExtraCallerID]; !usrSet || anonymous {
		rollbar.ClearPerson()
	}
	return e
}

// rollbarArgs is the argument list expected by rollbar's level functions.
func (e entry) rollbarArgs() []interface{} {
	args := []interface{}{e.msg}
	if e.err != nil {
		args = append(args, e.err)
	}
	if len(e.extras) > 0 {
		args = append(args, e.extras)
	}
	return append(args, e.other...)
}

// line formats the extras as sorted key=value pairs.
func (e entry) line() string {
	if len(e.extras) == 0 {
		return e.msg
	}
	keys := make([]string, 0, len(e.extras))
	for k := range e.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, e.extras[k]))
	}
	return e.msg + " [" + strings.Join(pairs, " ") + "]"
}

func (l *RollbarLogger) print(e entry) {
	l.std.Println(e.line())
	if e.err != nil {
		l.std.Printf("%+v\n", e.err)
	}
	for _, arg := range e.other {
		l.std.Printf("%+v\n", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	e := l.parse(msg, args)
	rollbar.Debug(e.rollbarArgs()...)
	l.print(e)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	e := l.parse(msg, args)
	rollbar.Info(e.rollbarArgs()...)
	l.print(e)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	e := l.parse(msg, args)
	rollbar.Warning(e.rollbarArgs()...)
	l.print(e)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	e := l.parse(msg, args)
	rollbar.Error(e.rollbarArgs()...)
	l.print(e)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := l.parse(msg, args)
	rollbar.Critical(e.rollbarArgs()...)
	l.print(e)
	l.std.Fatal(msg)
}
