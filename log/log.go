//  Copyright (c) 2014 Couchbase, Inc.

// Package log supplies leveled logging for gozone packages. Applications
// can plug their own Logger via SetLogger, otherwise a default logger
// writing to os.Stdout at "info" level is used.
package log

import "io"
import "os"
import "fmt"
import "time"
import "strings"
import "sync"

func init() {
	setts := map[string]interface{}{
		"log.level":      "info",
		"log.file":       "",
		"log.timeformat": timeformat,
	}
	SetLogger(nil, setts)
}

var timeformat = "2006-01-02T15:04:05.999Z-07:00"

// Logger interface for gozone logging, applications can supply a
// logger object implementing this interface or gozone will fall back
// to the defaultLogger{}.
type Logger interface {
	// SetLogLevel can be one of "ignore", "fatal", "error", "warn",
	// "info", "verbose", "debug", "trace".
	SetLogLevel(string)

	Fatalf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Verbosef(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Tracef(format string, v ...interface{})
	Printlf(loglevel LogLevel, format string, v ...interface{})
}

// LogLevel defines log level.
type LogLevel int

const (
	logLevelIgnore LogLevel = iota + 1
	logLevelFatal
	logLevelError
	logLevelWarn
	logLevelInfo
	logLevelVerbose
	logLevelDebug
	logLevelTrace
)

var log Logger

// SetLogger to integrate gozone logging with application logging.
// Importing this package will initialize the logger with info level
// logging to console. Recognised settings,
//
// "log.level" (string, default: "info")
//
// "log.file" (string, default: "")
//		Append to this file, create it if missing. Empty string
//		logs to os.Stdout.
//
// "log.timeformat" (string)
//		Time layout prefixed to every line, empty string disables
//		the timestamp.
func SetLogger(logger Logger, setts map[string]interface{}) Logger {
	if logger != nil {
		log = logger
		return log
	}

	var err error
	var output io.Writer = os.Stdout

	level := "info"
	if val, ok := setts["log.level"]; ok {
		level = val.(string)
	}
	if logfile, ok := setts["log.file"]; ok && logfile.(string) != "" {
		filename := logfile.(string)
		flags := os.O_RDWR | os.O_APPEND
		output, err = os.OpenFile(filename, flags, 0660)
		if err != nil {
			if output, err = os.Create(filename); err != nil {
				panic(err)
			}
		}
	}
	deflog := &defaultLogger{
		level: string2logLevel(level), output: output, timeformat: timeformat,
	}
	if val, ok := setts["log.timeformat"]; ok {
		deflog.timeformat = val.(string)
	}
	log = deflog
	return log
}

// defaultLogger with default log-file as os.Stdout and default
// log-level as logLevelInfo.
type defaultLogger struct {
	mu         sync.Mutex
	level      LogLevel
	output     io.Writer
	timeformat string
}

func (l *defaultLogger) SetLogLevel(level string) {
	l.mu.Lock()
	l.level = string2logLevel(level)
	l.mu.Unlock()
}

func (l *defaultLogger) Fatalf(format string, v ...interface{}) {
	l.Printlf(logLevelFatal, format, v...)
}

func (l *defaultLogger) Errorf(format string, v ...interface{}) {
	l.Printlf(logLevelError, format, v...)
}

func (l *defaultLogger) Warnf(format string, v ...interface{}) {
	l.Printlf(logLevelWarn, format, v...)
}

func (l *defaultLogger) Infof(format string, v ...interface{}) {
	l.Printlf(logLevelInfo, format, v...)
}

func (l *defaultLogger) Verbosef(format string, v ...interface{}) {
	l.Printlf(logLevelVerbose, format, v...)
}

func (l *defaultLogger) Debugf(format string, v ...interface{}) {
	l.Printlf(logLevelDebug, format, v...)
}

func (l *defaultLogger) Tracef(format string, v ...interface{}) {
	l.Printlf(logLevelTrace, format, v...)
}

func (l *defaultLogger) Printlf(level LogLevel, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.canlog(level) || l.output == nil {
		return
	}
	prefix := "[" + level.String() + "] "
	if l.timeformat != "" {
		prefix = time.Now().Format(l.timeformat) + " " + prefix
	}
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}
	fmt.Fprintf(l.output, prefix+format, v...)
}

func (l *defaultLogger) canlog(level LogLevel) bool {
	return level <= l.level
}

func (l LogLevel) String() string {
	switch l {
	case logLevelIgnore:
		return "Ignor"
	case logLevelFatal:
		return "Fatal"
	case logLevelError:
		return "Error"
	case logLevelWarn:
		return "Warng"
	case logLevelInfo:
		return "Infom"
	case logLevelVerbose:
		return "Verbs"
	case logLevelDebug:
		return "Debug"
	case logLevelTrace:
		return "Trace"
	}
	panic("unexpected log level") // should never reach here
}

func string2logLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "ignore":
		return logLevelIgnore
	case "fatal":
		return logLevelFatal
	case "error":
		return logLevelError
	case "warn":
		return logLevelWarn
	case "info":
		return logLevelInfo
	case "verbose":
		return logLevelVerbose
	case "debug":
		return logLevelDebug
	case "trace":
		return logLevelTrace
	}
	panic(fmt.Errorf("unexpected log level %q", s))
}

// Fatalf log with fatal level.
func Fatalf(format string, v ...interface{}) {
	log.Printlf(logLevelFatal, format, v...)
}

// Errorf log with error level.
func Errorf(format string, v ...interface{}) {
	log.Printlf(logLevelError, format, v...)
}

// Warnf log with warning level.
func Warnf(format string, v ...interface{}) {
	log.Printlf(logLevelWarn, format, v...)
}

// Infof log with info level.
func Infof(format string, v ...interface{}) {
	log.Printlf(logLevelInfo, format, v...)
}

// Verbosef log with verbose level.
func Verbosef(format string, v ...interface{}) {
	log.Printlf(logLevelVerbose, format, v...)
}

// Debugf log with debug level.
func Debugf(format string, v ...interface{}) {
	log.Printlf(logLevelDebug, format, v...)
}

// Tracef log with trace level.
func Tracef(format string, v ...interface{}) {
	log.Printlf(logLevelTrace, format, v...)
}

// Consolef print to os.Stdout irrespective of log level, used by
// command line tools.
func Consolef(format string, v ...interface{}) {
	fmt.Fprintf(os.Stdout, format, v...)
}
