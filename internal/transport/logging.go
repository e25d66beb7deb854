package transport

import (
	applog "audiotap/internal/log"
)

// LoggingTransport implements Transport by discarding payloads after an
// optional debug log line. It is the default transport when neither UDP nor
// websocket publishing is enabled, so taps never need a nil check.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the payload type at debug level and drops it.
func (lt *LoggingTransport) Send(data any) error {
	applog.Debugf("Transport: discarding payload (%T)", data)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
