// Package logging provides a small structured logging facade over logrus.
//
// Log calls take a message followed by alternating key/value pairs, which is
// the calling convention used throughout this codebase.
package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(message string, keyValuePairs ...any)
	Info(message string, keyValuePairs ...any)
	Warn(message string, keyValuePairs ...any)
	Error(message string, keyValuePairs ...any)
}

type logrusLogger struct {
	log *logrus.Logger
}

// New wraps a logrus logger in the key/value pair calling convention.
func New(log *logrus.Logger) Logger {
	return &logrusLogger{log: log}
}

// NewDefault returns a logger backed by the standard logrus logger.
func NewDefault() Logger {
	return &logrusLogger{log: logrus.StandardLogger()}
}

func fields(keyValuePairs []any) logrus.Fields {
	result := logrus.Fields{}
	for i := 0; i+1 < len(keyValuePairs); i += 2 {
		key, ok := keyValuePairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyValuePairs[i])
		}
		result[key] = keyValuePairs[i+1]
	}
	if len(keyValuePairs)%2 == 1 {
		result["missing_value"] = keyValuePairs[len(keyValuePairs)-1]
	}
	return result
}

func (l *logrusLogger) Debug(message string, keyValuePairs ...any) {
	l.log.WithFields(fields(keyValuePairs)).Debug(message)
}

func (l *logrusLogger) Info(message string, keyValuePairs ...any) {
	l.log.WithFields(fields(keyValuePairs)).Info(message)
}

func (l *logrusLogger) Warn(message string, keyValuePairs ...any) {
	l.log.WithFields(fields(keyValuePairs)).Warn(message)
}

func (l *logrusLogger) Error(message string, keyValuePairs ...any) {
	l.log.WithFields(fields(keyValuePairs)).Error(message)
}
