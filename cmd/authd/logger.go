package main

import (
	"fmt"

	auth "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

func newBaseLogger() *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("authd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

// printfLogger renders the auth printf-style calls as glog messages.
type printfLogger struct {
	lgr glog.Logger
}

var _ auth.Logger = printfLogger{}

func (l printfLogger) Debug(format string, args ...any) { l.lgr.Debug(fmt.Sprintf(format, args...)) }
func (l printfLogger) Info(format string, args ...any)  { l.lgr.Info(fmt.Sprintf(format, args...)) }
func (l printfLogger) Warn(format string, args ...any)  { l.lgr.Warn(fmt.Sprintf(format, args...)) }
func (l printfLogger) Error(format string, args ...any) { l.lgr.Error(fmt.Sprintf(format, args...)) }
