package rediswork

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

// Logger receives the DB's operational events: connection attempts, flushes,
// transaction brackets and index changes. Fields are alternating key/value
// pairs such as "type", "app.Person", "flush_id", id.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// fieldBinder is implemented by loggers that can attach fields natively.
type fieldBinder interface {
	With(fields ...interface{}) Logger
}

// loggerWith returns a logger that adds fields to every entry.
func loggerWith(l Logger, fields ...interface{}) Logger {
	if len(fields) == 0 {
		return l
	}
	if b, ok := l.(fieldBinder); ok {
		return b.With(fields...)
	}
	return &boundLogger{next: l, fields: fields}
}

type boundLogger struct {
	next   Logger
	fields []interface{}
}

func (b *boundLogger) join(fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(b.fields)+len(fields))
	return append(append(out, b.fields...), fields...)
}

func (b *boundLogger) Debug(msg string, fields ...interface{}) { b.next.Debug(msg, b.join(fields)...) }
func (b *boundLogger) Info(msg string, fields ...interface{})  { b.next.Info(msg, b.join(fields)...) }
func (b *boundLogger) Warn(msg string, fields ...interface{})  { b.next.Warn(msg, b.join(fields)...) }
func (b *boundLogger) Error(msg string, fields ...interface{}) { b.next.Error(msg, b.join(fields)...) }

// NoOpLogger discards everything. It is the DB default.
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, fields ...interface{}) {}
func (l *NoOpLogger) Info(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Warn(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Error(msg string, fields ...interface{}) {}

// StdLogger writes "prefix [LEVEL] msg key=value" lines through the standard
// log package. Debug lines are dropped unless Verbose is set.
type StdLogger struct {
	Verbose bool

	prefix string
	out    *log.Logger
}

// NewStdLogger logs to stderr.
func NewStdLogger(prefix string) *StdLogger {
	return NewStdLoggerTo(os.Stderr, prefix)
}

// NewStdLoggerTo logs to w without timestamps.
func NewStdLoggerTo(w io.Writer, prefix string) *StdLogger {
	return &StdLogger{prefix: prefix, out: log.New(w, "", 0)}
}

func (l *StdLogger) Debug(msg string, fields ...interface{}) {
	if l.Verbose {
		l.log("DEBUG", msg, fields...)
	}
}

func (l *StdLogger) Info(msg string, fields ...interface{})  { l.log("INFO", msg, fields...) }
func (l *StdLogger) Warn(msg string, fields ...interface{})  { l.log("WARN", msg, fields...) }
func (l *StdLogger) Error(msg string, fields ...interface{}) { l.log("ERROR", msg, fields...) }

func (l *StdLogger) log(level string, msg string, fields ...interface{}) {
	out := l.out
	if out == nil {
		out = log.Default()
	}
	out.Print(l.format(level, msg, fields...))
}

// format renders one line. A trailing key without a value is dropped.
func (l *StdLogger) format(level string, msg string, fields ...interface{}) string {
	var b strings.Builder
	if l.prefix != "" {
		b.WriteString(l.prefix)
		b.WriteByte(' ')
	}
	b.WriteString("[" + level + "] " + msg)
	for i := 0; i+1 < len(fields); i += 2 {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprint(fields[i]))
		b.WriteByte('=')
		b.WriteString(fieldValue(fields[i+1]))
	}
	return b.String()
}

// fieldValue quotes values that would otherwise break key=value parsing.
// Document keys such as Order_[Customer]_7|[Number]_42 stay unquoted.
func fieldValue(v interface{}) string {
	var s string
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case string:
		s = t
	case error:
		s = t.Error()
	default:
		s = fmt.Sprint(t)
	}
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
