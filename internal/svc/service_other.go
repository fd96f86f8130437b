//go:build !windows

package svc

import (
	"errors"

	"doctranslate/internal/service"
)

// ErrUnsupported is returned by the service manager operations outside Windows.
var ErrUnsupported = errors.New("Windows service management is not supported on this platform")

// TranslatorService is a stub for non-Windows platforms.
type TranslatorService struct {
	appService *service.AppService
	logger     *ServiceLogger
}

// NewTranslatorService creates a stub service instance.
func NewTranslatorService(appService *service.AppService, logger *ServiceLogger) *TranslatorService {
	return &TranslatorService{appService: appService, logger: logger}
}

// Run is not supported on non-Windows platforms.
func Run(string, *TranslatorService) error { return ErrUnsupported }

// IsWindowsService always reports false on non-Windows platforms.
func IsWindowsService() (bool, error) { return false, nil }

// InstallService is not supported on non-Windows platforms.
func InstallService(name, displayName, description, exePath string, serviceArgs []string) error {
	return ErrUnsupported
}

// RemoveService is not supported on non-Windows platforms.
func RemoveService(string) error { return ErrUnsupported }

// StartService is not supported on non-Windows platforms.
func StartService(string) error { return ErrUnsupported }

// StopService is not supported on non-Windows platforms.
func StopService(string) error { return ErrUnsupported }
