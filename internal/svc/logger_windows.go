//go:build windows

package svc

import "golang.org/x/sys/windows/svc/eventlog"

// openEventSink opens the Windows event log source, registering it first
// when it does not exist yet (requires administrator rights).
func openEventSink(serviceName string) (eventSink, error) {
	el, err := eventlog.Open(serviceName)
	if err == nil {
		return el, nil
	}
	if err := eventlog.InstallAsEventCreate(serviceName, eventlog.Info|eventlog.Warning|eventlog.Error); err != nil {
		return nil, err
	}
	return eventlog.Open(serviceName)
}
