// Package backup archives and restores the service data directory.
//
// Archive layout (tar.gz):
//
//	config.json      service configuration (secrets stay encrypted)
//	encryption.key   AES key for the encrypted config fields
//	history.db       consistent snapshot of the job history database
//	manifest.json    backup metadata
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HistoryFile is the archive name of the history database snapshot.
const HistoryFile = "history.db"

// Manifest records backup metadata.
type Manifest struct {
	Timestamp string   `json:"timestamp"`
	DataDir   string   `json:"data_dir"`
	Files     []string `json:"files"`
	Jobs      int      `json:"jobs"`
}

// Options configures a backup.
type Options struct {
	DataDir   string  // data directory (default "./data")
	OutputDir string  // archive directory (default ".")
	DB        *sql.DB // open history database, nil when history is disabled
}

// Result describes a written archive.
type Result struct {
	ArchivePath  string
	FilesWritten int
	BytesWritten int64
	Manifest     Manifest
}

// Run writes a full backup archive of opts.DataDir.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.DataDir == "" {
		opts.DataDir = "./data"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	now := time.Now()
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "local"
	}
	archivePath := filepath.Join(opts.OutputDir,
		fmt.Sprintf("doctranslate_%s_%s.tar.gz", hostname, now.Format("20060102-150405")))

	out, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	res := &Result{
		ArchivePath: archivePath,
		Manifest:    Manifest{Timestamp: now.Format(time.RFC3339), DataDir: opts.DataDir, Files: []string{}},
	}
	if err := write(ctx, out, opts, res); err != nil {
		out.Close()
		os.Remove(archivePath)
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return res, nil
}

func write(ctx context.Context, w io.Writer, opts Options, res *Result) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	add := func(n int64, name string) {
		res.BytesWritten += n
		res.FilesWritten++
		res.Manifest.Files = append(res.Manifest.Files, name)
	}

	for _, name := range []string{"config.json", "encryption.key"} {
		p := filepath.Join(opts.DataDir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		n, err := addFileToTar(tw, p, name)
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		add(n, name)
	}

	if opts.DB != nil {
		snapshot, jobs, err := snapshotDB(ctx, opts.DB)
		if err != nil {
			return err
		}
		defer os.RemoveAll(filepath.Dir(snapshot))
		n, err := addFileToTar(tw, snapshot, HistoryFile)
		if err != nil {
			return fmt.Errorf("add history: %w", err)
		}
		add(n, HistoryFile)
		res.Manifest.Jobs = jobs
	}

	manifestData, _ := json.MarshalIndent(res.Manifest, "", "  ")
	if _, err := addBytesToTar(tw, manifestData, "manifest.json"); err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

// snapshotDB copies the live database into a temporary file with VACUUM INTO,
// which is consistent under concurrent writers.
func snapshotDB(ctx context.Context, db *sql.DB) (string, int, error) {
	var jobs int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&jobs); err != nil {
		return "", 0, fmt.Errorf("count jobs: %w", err)
	}
	dir, err := os.MkdirTemp("", "doctranslate-backup-")
	if err != nil {
		return "", 0, err
	}
	path := filepath.Join(dir, HistoryFile)
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		os.RemoveAll(dir)
		return "", 0, fmt.Errorf("snapshot history: %w", err)
	}
	return path, jobs, nil
}

const (
	maxFileSize  = 2 << 30
	maxFileCount = 100
)

// Restore extracts archivePath into targetDir and returns the number of
// files written. Existing files are overwritten.
func Restore(archivePath, targetDir string) (int, error) {
	if targetDir == "" {
		targetDir = "./data"
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("decompress: %w", err)
	}
	defer gz.Close()

	root := filepath.Clean(targetDir)
	tr := tar.NewReader(gz)
	count := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read archive: %w", err)
		}

		target := filepath.Join(root, filepath.FromSlash(header.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return count, fmt.Errorf("illegal path in archive: %s", header.Name)
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, err
			}
		case tar.TypeReg:
			if header.Size > maxFileSize {
				return count, fmt.Errorf("file too large: %s (%d bytes)", header.Name, header.Size)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return count, err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode)&0755)
			if err != nil {
				return count, fmt.Errorf("create %s: %w", target, err)
			}
			_, err = io.Copy(out, io.LimitReader(tr, header.Size))
			out.Close()
			if err != nil {
				return count, fmt.Errorf("write %s: %w", target, err)
			}
			count++
			if count > maxFileCount {
				return count, fmt.Errorf("too many files in archive")
			}
		default:
			return count, fmt.Errorf("unsupported entry type in archive: %s", header.Name)
		}
	}
	return count, nil
}

func addFileToTar(tw *tar.Writer, absPath, archiveName string) (int64, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return 0, err
	}
	header.Name = archiveName
	if err := tw.WriteHeader(header); err != nil {
		return 0, err
	}
	f, err := os.Open(absPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(tw, f)
}

func addBytesToTar(tw *tar.Writer, data []byte, archiveName string) (int64, error) {
	header := &tar.Header{
		Name:    archiveName,
		Size:    int64(len(data)),
		Mode:    0644,
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return 0, err
	}
	n, err := tw.Write(data)
	return int64(n), err
}
