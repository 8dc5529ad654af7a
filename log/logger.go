package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// EnableDebugLog is the flag to enable the debug log
var EnableDebugLog = false

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableLevelTruncation: true})
	l.SetLevel(logrus.DebugLevel)
	return l
}

// SetOutput changes the destination of all the log messages.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// WithLayer returns the log entry tagged with the layer name, such as "serial" or "session".
// Debug level messages of the entry are still subject to `EnableDebugLog`.
func WithLayer(layer string) Entry {
	return Entry{entry: std.WithField("layer", layer)}
}

// Print is the wrapper function of the logrus Info
func Print(v ...interface{}) {
	std.Info(v...)
}

// Printf is the wrapper function of the logrus Infof
func Printf(format string, v ...interface{}) {
	std.Infof(format, v...)
}

// Println is the wrapper function of the logrus Infoln
func Println(v ...interface{}) {
	std.Infoln(v...)
}

// Warnf logs the advisory condition which doesn't fail the operation.
func Warnf(format string, v ...interface{}) {
	std.Warnf(format, v...)
}

// Debug calls logrus Debug function if the `EnableDebugLog` is true
func Debug(v ...interface{}) {
	if EnableDebugLog {
		std.Debug(v...)
	}
}

// Debugf calls logrus Debugf function if the `EnableDebugLog` is true
func Debugf(format string, v ...interface{}) {
	if EnableDebugLog {
		std.Debugf(format, v...)
	}
}

// Debugln calls logrus Debugln function if the `EnableDebugLog` is true
func Debugln(v ...interface{}) {
	if EnableDebugLog {
		std.Debugln(v...)
	}
}

// Entry is the layer-tagged logger.
type Entry struct {
	entry *logrus.Entry
}

// Printf logs the message at the info level.
func (e Entry) Printf(format string, v ...interface{}) {
	e.entry.Infof(format, v...)
}

// Warnf logs the message at the warn level.
func (e Entry) Warnf(format string, v ...interface{}) {
	e.entry.Warnf(format, v...)
}

// Errorf logs the message at the error level.
func (e Entry) Errorf(format string, v ...interface{}) {
	e.entry.Errorf(format, v...)
}

// Debugf logs the message at the debug level if the `EnableDebugLog` is true.
func (e Entry) Debugf(format string, v ...interface{}) {
	if EnableDebugLog {
		e.entry.Debugf(format, v...)
	}
}
