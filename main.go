package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"doctranslate/internal/service"
)

const (
	serviceName    = "DocTranslate"
	displayName    = "Document Translation Service"
	description    = "Translates PDF, Excel and Word documents while keeping their layout."
	defaultDataDir = "./data"
)

func main() {
	if isWindowsService() {
		runAsService(parseDataDirFlag())
		return
	}

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(dataDirFrom(args))
	case "extract", "translate", "export", "run", "history", "backup", "restore":
		if err := runCommand(cmd, args, os.Stdout); err != nil {
			if errUsage(err) {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			log.Fatalf("%s: %v", cmd, err)
		}
	case "install":
		handleInstall(args)
	case "remove":
		handleRemove()
	case "start":
		handleStart()
	case "stop":
		handleStop()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(2)
	}
}

// runServe starts the HTTP service and blocks until SIGINT/SIGTERM.
func runServe(dataDir string) {
	appSvc := &service.AppService{}
	if err := appSvc.Initialize(dataDir, envFiles(dataDir)...); err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := appSvc.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// envFiles lists the .env files read at startup, lowest priority last.
func envFiles(dataDir string) []string {
	return []string{".env", filepath.Join(dataDir, ".env")}
}

// parseDataDirFlag reads --datadir from the process arguments.
func parseDataDirFlag() string {
	return dataDirFrom(os.Args[1:])
}

// dataDirFrom extracts "--datadir <dir>" or "--datadir=<dir>" from args.
func dataDirFrom(args []string) string {
	for i, a := range args {
		switch {
		case strings.HasPrefix(a, "--datadir="):
			return strings.TrimPrefix(a, "--datadir=")
		case strings.HasPrefix(a, "-datadir="):
			return strings.TrimPrefix(a, "-datadir=")
		case (a == "--datadir" || a == "-datadir") && i+1 < len(args):
			return args[i+1]
		}
	}
	return defaultDataDir
}

// printUsage prints CLI usage information.
func printUsage() {
	fmt.Println(`Usage:
  doctranslate [serve] [--datadir <dir>]          start the HTTP API (default port 8000)
  doctranslate extract <file> [-o bundle.json]    extract the text units of a document
  doctranslate translate <bundle.json> [--source auto] [--target vi] [-o out.json]
                                                  translate an extracted bundle
  doctranslate export <bundle.json> <original> [-o output]
                                                  write a translated bundle into the original
  doctranslate run <file> [--source auto] [--target vi] [-o output]
                                                  extract, translate and export in one go
  doctranslate history [--limit 20]               list recent stage runs
  doctranslate backup [-o dir]                    archive config, key and history
  doctranslate restore <archive.tar.gz>           restore a backup into the data directory
  doctranslate install|remove|start|stop          manage the Windows service
  doctranslate help                               show this help

Supported formats: .pdf .xlsx .xls .docx .doc
Legacy .xls/.doc documents are exported as .xlsx/.docx.

All commands accept --datadir <dir> (default ./data), which holds config.json,
encryption.key, history.db and the error log. Settings can be overridden with
DOCTRANSLATE_* environment variables or a .env file.`)
}
