//go:build !windows

package svc

import "errors"

func openEventSink(string) (eventSink, error) {
	return nil, errors.New("no event log on this platform")
}
