package logging

import (
	"github.com/sirupsen/logrus"
	"io"
	"os"
)

type prefixFormatter struct {
	prefix    string
	formatter logrus.Formatter
}

// Options configures the two log streams this core writes: the
// operational log (forwarder warnings, active probing start/stop and
// failure lines) and the per-request access log (one line per forwarded
// request, written by LogAccess).
type Options struct {

	// Prefix for operational log entries. Lets an operator tell
	// forwarder/healthcheck lines apart from access log lines when both
	// are multiplexed onto the same stream.
	OperationalLogPrefix string

	// Output for operational log entries, when nil, os.Stderr is used.
	OperationalLogOutput io.Writer

	// Output for the access log entries, when nil, os.Stderr is
	// used.
	AccessLogOutput io.Writer

	// When set, no access log is printed.
	AccessLogDisabled bool
}

func (f *prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b, err := f.formatter.Format(e)
	if err != nil {
		return nil, err
	}

	return append([]byte(f.prefix), b...), nil
}

func initOperationalLog(prefix string, output io.Writer) {
	if prefix != "" {
		logrus.SetFormatter(&prefixFormatter{
			prefix, logrus.StandardLogger().Formatter})
	}

	if output != nil {
		logrus.SetOutput(output)
	}
}

func initAccessLog(output io.Writer) {
	l := logrus.New()
	l.Formatter = &accessLogFormatter{accessLogFormat}
	l.Out = output
	l.Level = logrus.InfoLevel
	accessLog = l
}

// Init wires up the operational and access logs from Options. The
// operational options apply to logrus's standard logger, which the
// forwarder and the active health check monitor log through; the
// per-request outcome goes through LogAccess. A DefaultLog from New
// writes through its own logrus instance, which Init does not configure.
func Init(o Options) {
	if o.OperationalLogPrefix != "" || o.OperationalLogOutput != nil {
		initOperationalLog(o.OperationalLogPrefix, o.OperationalLogOutput)
	}

	if !o.AccessLogDisabled {
		if o.AccessLogOutput == nil {
			o.AccessLogOutput = os.Stderr
		}

		initAccessLog(o.AccessLogOutput)
	}
}
