// Package errlog is an error-only rotating file log. Every stage that
// degrades instead of failing (OCR fallback, untranslated unit, skipped sheet,
// rejected PDF strategy) records the event here so operators can audit lost
// content after the fact.
//
// The current file is gzip-archived once it reaches the rotation size, and
// only the newest archives are kept.
package errlog

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogDir = "/var/log/doctranslate"
	windowsLogDir = "logs"
	logFileName   = "error.log"

	// defaultRotationMB is the rotation threshold when none is configured.
	defaultRotationMB = 100
	// defaultBackups is the number of compressed archives to keep.
	defaultBackups = 5
	writeBufSize   = 4096
)

// Options configures Init. Zero values select the defaults.
type Options struct {
	Dir            string
	RotationSizeMB int
	MaxBackups     int
}

var (
	global *errorLogger
	mu     sync.Mutex // protects Init / Close and the global pointer
	logDir = platformLogDir()
)

type errorLogger struct {
	mu         sync.Mutex
	file       *os.File
	dir        string
	path       string
	size       int64
	buf        []byte
	closed     bool
	maxRotSize int64
	maxBackups int
}

func platformLogDir() string {
	if runtime.GOOS == "windows" {
		return windowsLogDir
	}
	return defaultLogDir
}

// Init opens the error log. Calling it while the logger is running is a
// no-op; after a failed Init it may be retried.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return nil
	}

	dir := opts.Dir
	if dir == "" {
		dir = platformLogDir()
	}
	rot := opts.RotationSizeMB
	if rot < 1 {
		rot = defaultRotationMB
	}
	backups := opts.MaxBackups
	if backups < 1 {
		backups = defaultBackups
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create error log directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open error log file %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat error log file: %w", err)
	}

	logDir = dir
	global = &errorLogger{
		file:       f,
		dir:        dir,
		path:       path,
		size:       info.Size(),
		buf:        make([]byte, 0, writeBufSize),
		maxRotSize: int64(rot) << 20,
		maxBackups: backups,
	}
	return nil
}

// Logf writes a formatted error line. It is ignored before Init.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	l := global
	mu.Unlock()

	if l == nil {
		return
	}
	l.logf(format, args...)
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if global == nil {
		return
	}
	global.close()
	global = nil
}

func (l *errorLogger) logf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.file == nil {
		return
	}

	// "2006/01/02 15:04:05 [ERROR] <message>\n"
	l.buf = l.buf[:0]
	l.buf = time.Now().AppendFormat(l.buf, "2006/01/02 15:04:05")
	l.buf = append(l.buf, " [ERROR] "...)
	l.buf = fmt.Appendf(l.buf, format, args...)
	if l.buf[len(l.buf)-1] != '\n' {
		l.buf = append(l.buf, '\n')
	}

	n, err := l.file.Write(l.buf)
	if err != nil {
		return
	}
	l.size += int64(n)

	if l.size >= l.maxRotSize {
		l.rotate()
	}
}

// rotate archives the current file and reopens it empty. Caller holds l.mu.
func (l *errorLogger) rotate() {
	l.file.Sync()
	l.file.Close()
	l.file = nil

	// error-20260219-153045.000.log.gz
	ts := time.Now().Format("20060102-150405.000")
	archivePath := filepath.Join(l.dir, "error-"+ts+".log.gz")

	// The live file is truncated whether or not the archive was written, so
	// a failing disk cannot make it grow without bound.
	_ = compressFile(l.path, archivePath)
	os.Truncate(l.path, 0)

	l.pruneArchives()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	l.file = f
	l.size = 0
}

func (l *errorLogger) pruneArchives() {
	archives, err := listArchives(l.dir)
	if err != nil || len(archives) <= l.maxBackups {
		return
	}
	for _, name := range archives[:len(archives)-l.maxBackups] {
		os.Remove(filepath.Join(l.dir, name))
	}
}

func (l *errorLogger) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.file != nil {
		l.file.Sync()
		l.file.Close()
		l.file = nil
	}
}

// compressFile gzips src into dst, removing dst on failure.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	gw, err := gzip.NewWriterLevel(out, gzip.BestSpeed)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// GetLogDir returns the directory of the current (or last) error log.
func GetLogDir() string {
	mu.Lock()
	defer mu.Unlock()
	return logDir
}

// GetLogPath returns the path of the current error log file.
func GetLogPath() string {
	return filepath.Join(GetLogDir(), logFileName)
}

// GetRotationSizeMB returns the rotation threshold in megabytes.
func GetRotationSizeMB() int {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.mu.Lock()
		defer global.mu.Unlock()
		return int(global.maxRotSize >> 20)
	}
	return defaultRotationMB
}

// SetRotationSizeMB updates the rotation threshold; values below 1 become 1.
func SetRotationSizeMB(sizeMB int) {
	if sizeMB < 1 {
		sizeMB = 1
	}
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.mu.Lock()
		global.maxRotSize = int64(sizeMB) << 20
		global.mu.Unlock()
	}
}

// RecentLines returns up to n of the newest lines, oldest first.
func RecentLines(n int) ([]string, error) {
	if n <= 0 {
		n = 50
	}
	f, err := os.Open(GetLogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return []string{}, nil
	}

	// Long lines are tolerated up to the read window.
	const maxRead = 256 * 1024
	readStart := int64(0)
	if size > maxRead {
		readStart = size - maxRead
	}
	buf := make([]byte, size-readStart)
	if _, err := f.ReadAt(buf, readStart); err != nil && err != io.EOF {
		return nil, err
	}

	lines := make([]string, 0, n)
	end := len(buf)
	if end > 0 && buf[end-1] == '\n' {
		end--
	}
	for i := end - 1; i >= 0 && len(lines) < n; i-- {
		if buf[i] == '\n' {
			if line := string(buf[i+1 : end]); line != "" {
				lines = append(lines, line)
			}
			end = i
		}
	}
	if len(lines) < n && end > 0 {
		if line := string(buf[:end]); line != "" {
			lines = append(lines, line)
		}
	}

	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

// ListArchives returns the compressed archives in the log directory, oldest first.
func ListArchives() ([]string, error) {
	archives, err := listArchives(GetLogDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	return archives, nil
}

func listArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "error-") && strings.HasSuffix(name, ".log.gz") {
			archives = append(archives, name)
		}
	}
	sort.Strings(archives)
	return archives, nil
}
