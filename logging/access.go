package logging

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	dateFormat      = "02/Jan/2006:15:04:05 -0700"
	commonLogFormat = `%s - - [%s] "%s %s %s" %d %d`
	// remote_host - - [date] "method uri protocol" status response_size "cluster" "destination"
	combinedLogFormat = commonLogFormat + ` "%s" "%s"`
	// duration in ms appended after the destination id
	accessLogFormat = combinedLogFormat + " %d\n"
)

type accessLogFormatter struct {
	format string
}

// AccessEntry is one forwarded request's access log record: the inbound
// request plus the outcome of Forwarder.Forward against a specific
// cluster and destination.
type AccessEntry struct {
	// Request is the client request that was forwarded.
	Request *http.Request

	// StatusCode is the destination's response status, or 0 if the
	// request never got a response (destination failure).
	StatusCode int

	// ResponseSize is the response's content length, -1 if unknown.
	ResponseSize int64

	// Duration is the time spent waiting on the destination.
	Duration time.Duration

	// RequestTime is when the request was received.
	RequestTime time.Time

	// ClusterID and DestinationID identify where the request was sent.
	ClusterID     string
	DestinationID string

	// RequestID is the id Forwarder puts in its warning lines for the
	// same request. LogAccess attaches it to the log entry as the
	// "request-id" field; the access log line format does not print it.
	RequestID string
}

var accessLog *logrus.Logger

// strip port from addresses with hostname, ipv4 or ipv6
func stripPort(address string) string {
	if h, _, err := net.SplitHostPort(address); err == nil {
		return h
	}
	return address
}

func remoteAddr(r *http.Request) string {
	if ff := r.Header.Get("X-Forwarded-For"); ff != "" {
		return ff
	}
	return r.RemoteAddr
}

func remoteHost(r *http.Request) string {
	h := stripPort(remoteAddr(r))
	if h != "" {
		return h
	}
	return "-"
}

func (f *accessLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	keys := []string{
		"host", "timestamp", "method", "uri", "proto",
		"status", "response-size", "cluster", "destination",
		"duration"}

	values := make([]interface{}, len(keys))
	for i, key := range keys {
		values[i] = e.Data[key]
	}

	return []byte(fmt.Sprintf(f.format, values...)), nil
}

// LogAccess logs a forwarded request in a customized Apache combined log
// format: destination/cluster id in place of referer/user-agent, plus the
// forwarding duration in milliseconds.
func LogAccess(entry *AccessEntry) {
	if accessLog == nil || entry == nil {
		return
	}

	ts := entry.RequestTime.Format(dateFormat)

	host := "-"
	method := ""
	uri := ""
	proto := ""

	if entry.Request != nil {
		host = remoteHost(entry.Request)
		method = entry.Request.Method
		uri = entry.Request.RequestURI
		proto = entry.Request.Proto
	}

	accessLog.WithFields(logrus.Fields{
		"timestamp":     ts,
		"host":          host,
		"method":        method,
		"uri":           uri,
		"proto":         proto,
		"status":        entry.StatusCode,
		"response-size": entry.ResponseSize,
		"cluster":       entry.ClusterID,
		"destination":   entry.DestinationID,
		"duration":      int64(entry.Duration / time.Millisecond),
		"request-id":    entry.RequestID,
	}).Infoln()
}
