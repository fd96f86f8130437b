//go:build windows

package svc

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"doctranslate/internal/service"
)

// TranslatorService implements the Windows service interface.
type TranslatorService struct {
	appService *service.AppService
	logger     *ServiceLogger
}

// NewTranslatorService creates a new Windows service instance.
func NewTranslatorService(appService *service.AppService, logger *ServiceLogger) *TranslatorService {
	return &TranslatorService{
		appService: appService,
		logger:     logger,
	}
}

// Execute implements the windows/svc.Handler interface.
func (ts *TranslatorService) Execute(args []string, r <-chan svc.ChangeRequest, s chan<- svc.Status) (bool, uint32) {
	s <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- ts.appService.Run(ctx)
	}()

	s <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}
	ts.logger.Info("Translation service started")

	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Stop, svc.Shutdown:
				ts.logger.Info("Received stop/shutdown command")
				s <- svc.Status{State: svc.StopPending, WaitHint: 30000}
				cancel()
				select {
				case err := <-errCh:
					if err != nil {
						ts.logger.Error("Shutdown error: %v", err)
					}
				case <-time.After(30 * time.Second):
					ts.logger.Warning("Shutdown timed out")
				}
				s <- svc.Status{State: svc.Stopped}
				ts.logger.Info("Translation service stopped")
				return false, 0

			case svc.Interrogate:
				s <- c.CurrentStatus

			default:
				ts.logger.Warning("Unexpected service control command: %v", c.Cmd)
			}

		case err := <-errCh:
			s <- svc.Status{State: svc.Stopped}
			if err != nil {
				ts.logger.Error("Application error: %v", err)
				return false, 1
			}
			return false, 0
		}
	}
}

// Run hands control to the service manager until the service stops.
func Run(name string, ts *TranslatorService) error {
	return svc.Run(name, ts)
}

// IsWindowsService reports whether the process was started by the service
// manager.
func IsWindowsService() (bool, error) {
	return svc.IsWindowsService()
}

// InstallService installs the service with automatic start and restart on
// failure.
func InstallService(name, displayName, description, exePath string, serviceArgs []string) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err == nil {
		s.Close()
		return fmt.Errorf("service %s already exists", name)
	}

	s, err = m.CreateService(name, exePath, mgr.Config{
		DisplayName: displayName,
		Description: description,
		StartType:   mgr.StartAutomatic,
	}, serviceArgs...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer s.Close()

	recovery := []mgr.RecoveryAction{
		{Type: mgr.ServiceRestart, Delay: 5 * time.Second},
		{Type: mgr.ServiceRestart, Delay: 30 * time.Second},
		{Type: mgr.NoAction},
	}
	if err := s.SetRecoveryActions(recovery, 86400); err != nil {
		return fmt.Errorf("failed to set recovery actions: %w", err)
	}
	return nil
}

// withService connects to the service manager and opens name.
func withService(name string, fn func(*mgr.Service) error) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return fmt.Errorf("service %s not found: %w", name, err)
	}
	defer s.Close()
	return fn(s)
}

// RemoveService uninstalls the service.
func RemoveService(name string) error {
	return withService(name, func(s *mgr.Service) error {
		if err := s.Delete(); err != nil {
			return fmt.Errorf("failed to delete service: %w", err)
		}
		return nil
	})
}

// StartService starts the service.
func StartService(name string) error {
	return withService(name, func(s *mgr.Service) error {
		if err := s.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}
		return nil
	})
}

// StopService stops the service and waits up to 30 seconds for it to exit.
func StopService(name string) error {
	return withService(name, func(s *mgr.Service) error {
		status, err := s.Control(svc.Stop)
		if err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
		deadline := time.Now().Add(30 * time.Second)
		for status.State != svc.Stopped {
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for service to stop")
			}
			time.Sleep(300 * time.Millisecond)
			if status, err = s.Query(); err != nil {
				return fmt.Errorf("failed to query service status: %w", err)
			}
		}
		return nil
	})
}
