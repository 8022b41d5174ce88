// Package rlog wraps logrus behind a small interface so call sites log
// through Logger rather than through logrus itself. The one logrus type
// that crosses the boundary is the logrus.Level that New takes.
package rlog

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the facade every package in reposcope depends on. Outside
// this package, logrus is imported only by cmd/reposcope, to pick the
// level passed to New.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithError(err error) Logger
}

type logger struct {
	entry *logrus.Entry
}

// New builds a Logger that writes to w at the given level.
func New(w io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logger{entry: logrus.NewEntry(l)}
}

func (l *logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{entry: l.entry.WithField(key, value)}
}

func (l *logger) WithError(err error) Logger {
	return &logger{entry: l.entry.WithError(err)}
}

type ctxKey struct{}

// ContextWithLogger attaches l to ctx, threading a logger through
// deep call chains without a global.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached by ContextWithLogger, or a
// discarding logger if none was attached.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return New(io.Discard, logrus.PanicLevel)
}
