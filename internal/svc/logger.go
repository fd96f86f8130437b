// Package svc runs the translation service under the Windows Service Control
// Manager and provides the service log used in that mode.
package svc

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// logFileName is the service log inside the log directory.
const logFileName = "doctranslate-service.log"

// eventSink receives service events in addition to the file log. It is the
// Windows event log when running under the service manager.
type eventSink interface {
	Info(eid uint32, msg string) error
	Warning(eid uint32, msg string) error
	Error(eid uint32, msg string) error
	Close() error
}

// ServiceLogger writes service lifecycle events to a file and, when
// available, to the platform event log.
type ServiceLogger struct {
	mu         sync.Mutex
	fileLogger *log.Logger
	file       *os.File
	events     eventSink
}

// NewServiceLogger opens <logDir>/doctranslate-service.log. When isService
// is set the platform event log is attached as well.
func NewServiceLogger(serviceName string, isService bool, logDir string) (*ServiceLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	sl := &ServiceLogger{
		file:       f,
		fileLogger: log.New(f, "", log.LstdFlags),
	}

	if isService {
		events, err := openEventSink(serviceName)
		if err != nil {
			sl.fileLogger.Printf("[WARNING] event log unavailable: %v", err)
		} else {
			sl.events = events
		}
	}
	return sl, nil
}

func (sl *ServiceLogger) write(level string, emit func(eventSink, string) error, msg string, args ...interface{}) {
	text := fmt.Sprintf(msg, args...)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.fileLogger != nil {
		sl.fileLogger.Printf("[%s] %s", level, text)
	}
	if sl.events != nil {
		emit(sl.events, text)
	}
}

// Info logs an informational message.
func (sl *ServiceLogger) Info(msg string, args ...interface{}) {
	sl.write("INFO", func(e eventSink, s string) error { return e.Info(1, s) }, msg, args...)
}

// Warning logs a warning message.
func (sl *ServiceLogger) Warning(msg string, args ...interface{}) {
	sl.write("WARNING", func(e eventSink, s string) error { return e.Warning(1, s) }, msg, args...)
}

// Error logs an error message.
func (sl *ServiceLogger) Error(msg string, args ...interface{}) {
	sl.write("ERROR", func(e eventSink, s string) error { return e.Error(1, s) }, msg, args...)
}

// Close closes the logger and releases resources.
func (sl *ServiceLogger) Close() {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.events != nil {
		sl.events.Close()
		sl.events = nil
	}
	if sl.file != nil {
		sl.file.Close()
		sl.file = nil
		sl.fileLogger = nil
	}
}
