package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"doctranslate/internal/service"
	appsvc "doctranslate/internal/svc"
)

// isWindowsService checks if running under the Windows service manager.
func isWindowsService() bool {
	isService, err := appsvc.IsWindowsService()
	if err != nil {
		log.Fatalf("Failed to determine if running as service: %v", err)
	}
	return isService
}

// handleInstall installs the Windows service.
func handleInstall(args []string) {
	dataDir := dataDirFrom(args)
	exePath, err := os.Executable()
	if err != nil {
		log.Fatalf("Failed to get executable path: %v", err)
	}

	var serviceArgs []string
	if dataDir != defaultDataDir {
		abs, err := filepath.Abs(dataDir)
		if err == nil {
			dataDir = abs
		}
		serviceArgs = append(serviceArgs, "--datadir="+dataDir)
	}

	if err := appsvc.InstallService(serviceName, displayName, description, exePath, serviceArgs); err != nil {
		log.Fatalf("Failed to install service: %v", err)
	}

	fmt.Println("✓ Service installed successfully")
	if len(serviceArgs) > 0 {
		fmt.Printf("  Data directory: %s\n", dataDir)
	}
	fmt.Println("\nTo start the service, run:")
	fmt.Println("  doctranslate start")
}

// handleRemove uninstalls the Windows service.
func handleRemove() {
	if err := appsvc.RemoveService(serviceName); err != nil {
		log.Fatalf("Failed to remove service: %v", err)
	}
	fmt.Println("✓ Service removed successfully")
}

// handleStart starts the Windows service.
func handleStart() {
	if err := appsvc.StartService(serviceName); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	fmt.Println("✓ Service started successfully")
}

// handleStop stops the Windows service.
func handleStop() {
	if err := appsvc.StopService(serviceName); err != nil {
		log.Fatalf("Failed to stop service: %v", err)
	}
	fmt.Println("✓ Service stopped successfully")
}

// runAsService runs the HTTP API under the Windows service manager.
func runAsService(dataDir string) {
	logger, err := appsvc.NewServiceLogger(serviceName, true, filepath.Join(dataDir, "logs"))
	if err != nil {
		log.Fatalf("Failed to create service logger: %v", err)
	}
	defer logger.Close()

	appSvc := &service.AppService{}
	if err := appSvc.Initialize(dataDir, filepath.Join(dataDir, ".env")); err != nil {
		logger.Error("Failed to initialize application: %v", err)
		log.Fatalf("Failed to initialize application: %v", err)
	}

	logger.Info("Starting %s...", displayName)
	if err := appsvc.Run(serviceName, appsvc.NewTranslatorService(appSvc, logger)); err != nil {
		logger.Error("Service failed: %v", err)
		log.Fatalf("Service failed: %v", err)
	}
}
