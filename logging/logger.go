package logging

import (
	"github.com/sirupsen/logrus"
)

// DefaultLog provides a default implementation of the Logger interface.
// A single instance is typically shared by a component (ActiveProber)
// across every cluster and destination it touches, so
// WithFields returns a new instance carrying the merged fields rather
// than mutating the receiver: two goroutines tagging the shared Logger
// for two different destinations must never race on one fields map.
type DefaultLog struct {
	logger logrus.Logger
	fields map[string]interface{}
}

// Logger instances provide custom logging.
type Logger interface {

	// Log with level ERROR
	Error(...interface{})

	// Log formatted messages with level ERROR
	Errorf(string, ...interface{})

	// Log with level WARN
	Warn(...interface{})

	// Log formatted messages with level WARN
	Warnf(string, ...interface{})

	// Log with level INFO
	Info(...interface{})

	// Log formatted messages with level INFO
	Infof(string, ...interface{})

	// Log with level DEBUG
	Debug(...interface{})

	// Log formatted messages with level DEBUG
	Debugf(string, ...interface{})

	WithFields(map[string]interface{}) Logger
}

func (dl *DefaultLog) Error(a ...interface{}) { dl.logger.WithFields(dl.fields).Error(a...) }
func (dl *DefaultLog) Errorf(f string, a ...interface{}) {
	dl.logger.WithFields(dl.fields).Errorf(f, a...)
}
func (dl *DefaultLog) Warn(a ...interface{}) { dl.logger.WithFields(dl.fields).Warn(a...) }
func (dl *DefaultLog) Warnf(f string, a ...interface{}) {
	dl.logger.WithFields(dl.fields).Warnf(f, a...)
}
func (dl *DefaultLog) Info(a ...interface{}) { dl.logger.WithFields(dl.fields).Info(a...) }
func (dl *DefaultLog) Infof(f string, a ...interface{}) {
	dl.logger.WithFields(dl.fields).Infof(f, a...)
}
func (dl *DefaultLog) Debug(a ...interface{}) { dl.logger.WithFields(dl.fields).Debug(a...) }
func (dl *DefaultLog) Debugf(f string, a ...interface{}) {
	dl.logger.WithFields(dl.fields).Debugf(f, a...)
}

func (dl *DefaultLog) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(dl.fields)+len(fields))
	for k, v := range dl.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &DefaultLog{logger: dl.logger, fields: merged}
}

func New() *DefaultLog {
	return &DefaultLog{logger: *logrus.New(), fields: map[string]interface{}{}}
}

// WithCluster and WithDestination are domain-specific sugar over
// WithFields: every line an ActiveProber writes through the returned
// Logger carries the cluster/destination id as a structured field
// instead of the call site interpolating it into the message text, the
// same way LogAccess carries ClusterID/DestinationID for forwarded
// requests.
func WithCluster(l Logger, clusterID string) Logger {
	return l.WithFields(map[string]interface{}{"cluster": clusterID})
}

func WithDestination(l Logger, destinationID string) Logger {
	return l.WithFields(map[string]interface{}{"destination": destinationID})
}
