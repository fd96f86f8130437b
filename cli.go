package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"doctranslate/internal/backup"
	"doctranslate/internal/document"
	"doctranslate/internal/service"
)

// bundleFile is the on-disk form of an extracted or translated document,
// matching the fields exchanged by the HTTP API.
type bundleFile struct {
	FileType string          `json:"file_type"`
	Filename string          `json:"filename"`
	Content  json.RawMessage `json:"content"`
}

// command holds the flags shared by the one-shot commands.
type command struct {
	fs      *flag.FlagSet
	dataDir string
	output  string
	source  string
	target  string
	limit   int
	args    []string
}

func newCommand(name string) *command {
	c := &command{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.SetOutput(io.Discard)
	c.fs.StringVar(&c.dataDir, "datadir", defaultDataDir, "data directory")
	c.fs.StringVar(&c.output, "o", "", "output file")
	c.fs.StringVar(&c.source, "source", "", "source language (auto detects)")
	c.fs.StringVar(&c.target, "target", "", "target language")
	c.fs.IntVar(&c.limit, "limit", 20, "number of history entries")
	return c
}

// parse accepts flags before, between and after positional arguments.
func (c *command) parse(args []string) error {
	for {
		if err := c.fs.Parse(args); err != nil {
			return err
		}
		rest := c.fs.Args()
		if len(rest) == 0 {
			return nil
		}
		c.args = append(c.args, rest[0])
		args = rest[1:]
	}
}

func (c *command) need(n int, usage string) error {
	if len(c.args) != n {
		return fmt.Errorf("usage: doctranslate %s", usage)
	}
	return nil
}

// runCommand executes one of the one-shot pipeline commands. Results that
// have no -o destination are written to out.
func runCommand(name string, args []string, out io.Writer) error {
	c := newCommand(name)
	if err := c.parse(args); err != nil {
		return err
	}

	switch name {
	case "extract":
		if err := c.need(1, "extract <file> [-o bundle.json]"); err != nil {
			return err
		}
	case "translate":
		if err := c.need(1, "translate <bundle.json> [--source auto] [--target vi] [-o out.json]"); err != nil {
			return err
		}
	case "export":
		if err := c.need(2, "export <bundle.json> <original> [-o output]"); err != nil {
			return err
		}
	case "run":
		if err := c.need(1, "run <file> [--source auto] [--target vi] [-o output]"); err != nil {
			return err
		}
	case "history":
		if err := c.need(0, "history [--limit 20]"); err != nil {
			return err
		}
	case "backup":
		if err := c.need(0, "backup [-o dir]"); err != nil {
			return err
		}
	case "restore":
		if err := c.need(1, "restore <archive.tar.gz>"); err != nil {
			return err
		}
		// Restoring must not create a fresh config or key first.
		n, err := backup.Restore(c.args[0], c.dataDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "restored %d files into %s\n", n, c.dataDir)
		return nil
	default:
		return fmt.Errorf("unknown command %q", name)
	}

	appSvc := &service.AppService{}
	if err := appSvc.Initialize(c.dataDir, envFiles(c.dataDir)...); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer appSvc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dm := appSvc.GetDocManager()
	switch name {
	case "extract":
		return c.extract(ctx, dm, out)
	case "translate":
		return c.translate(ctx, dm, out)
	case "export":
		return c.export(ctx, dm, out)
	case "run":
		return c.run(ctx, dm, out)
	case "backup":
		return c.backup(ctx, appSvc, out)
	default:
		return c.history(ctx, appSvc, out)
	}
}

func (c *command) extract(ctx context.Context, dm *document.DocumentManager, out io.Writer) error {
	data, err := os.ReadFile(c.args[0])
	if err != nil {
		return err
	}
	res, err := dm.Extract(ctx, data, c.args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "extracted %d text units from %s\n", res.Bundle.Len(), c.args[0])
	return c.writeBundle(out, bundleFile{
		FileType: string(res.Bundle.Format),
		Filename: filepath.Base(c.args[0]),
		Content:  res.Content,
	})
}

func (c *command) translate(ctx context.Context, dm *document.DocumentManager, out io.Writer) error {
	in, err := readBundle(c.args[0])
	if err != nil {
		return err
	}
	res, err := dm.Translate(ctx, document.TranslateRequest{
		FileType:         in.FileType,
		Content:          in.Content,
		OriginalFilename: in.Filename,
		SourceLang:       c.source,
		TargetLang:       c.target,
	})
	if err != nil {
		return err
	}
	printStats(res)
	in.Content = res.Content
	return c.writeBundle(out, *in)
}

func (c *command) export(ctx context.Context, dm *document.DocumentManager, out io.Writer) error {
	in, err := readBundle(c.args[0])
	if err != nil {
		return err
	}
	original, err := os.ReadFile(c.args[1])
	if err != nil {
		return err
	}
	name := in.Filename
	if name == "" {
		name = c.args[1]
	}
	res, err := dm.Export(ctx, document.ExportRequest{
		FileType:          in.FileType,
		TranslatedContent: in.Content,
		Original:          original,
		OriginalFilename:  name,
	})
	if err != nil {
		return err
	}
	return c.writeDocument(out, res)
}

func (c *command) run(ctx context.Context, dm *document.DocumentManager, out io.Writer) error {
	data, err := os.ReadFile(c.args[0])
	if err != nil {
		return err
	}
	ex, err := dm.Extract(ctx, data, c.args[0])
	if err != nil {
		return err
	}
	tr, err := dm.Translate(ctx, document.TranslateRequest{
		FileType:         string(ex.Bundle.Format),
		Content:          ex.Content,
		OriginalFilename: filepath.Base(c.args[0]),
		SourceLang:       c.source,
		TargetLang:       c.target,
	})
	if err != nil {
		return err
	}
	printStats(tr)
	res, err := dm.Export(ctx, document.ExportRequest{
		FileType:          string(ex.Bundle.Format),
		TranslatedContent: tr.Content,
		Original:          data,
		OriginalFilename:  c.args[0],
	})
	if err != nil {
		return err
	}
	return c.writeDocument(out, res)
}

func (c *command) history(ctx context.Context, appSvc *service.AppService, out io.Writer) error {
	store := appSvc.GetHistory()
	if store == nil {
		fmt.Fprintln(out, "job history is disabled")
		return nil
	}
	jobs, err := store.Recent(ctx, c.limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTAGE\tFILE\tFORMAT\tUNITS\tFAILED\tSTATUS\tDURATION")
	for _, j := range jobs {
		status := j.Status
		if j.Error != "" {
			status += ": " + j.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			j.CreatedAt.Local().Format("2006-01-02 15:04:05"), j.Stage, j.FileName, j.Format,
			j.Units, j.Failed, status, j.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

func (c *command) backup(ctx context.Context, appSvc *service.AppService, out io.Writer) error {
	res, err := backup.Run(ctx, backup.Options{
		DataDir:   c.dataDir,
		OutputDir: c.output,
		DB:        appSvc.GetDB(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d files, %d history jobs)\n", res.ArchivePath, res.FilesWritten, res.Manifest.Jobs)
	return nil
}

func printStats(res *document.TranslateResult) {
	s := res.Stats
	fmt.Fprintf(os.Stderr, "translated %d of %d units (%d skipped, %d failed) in %s\n",
		s.Translated, s.Units, s.Skipped, s.Failed, s.Duration.Round(time.Millisecond))
}

func readBundle(path string) (*bundleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b bundleFile
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%s: invalid bundle file: %w", path, err)
	}
	if strings.TrimSpace(b.FileType) == "" || len(b.Content) == 0 {
		return nil, fmt.Errorf("%s: bundle file needs file_type and content", path)
	}
	return &b, nil
}

func (c *command) writeBundle(out io.Writer, b bundleFile) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if c.output == "" {
		_, err = out.Write(data)
		return err
	}
	return os.WriteFile(c.output, data, 0644)
}

// writeDocument saves an exported document to -o, or next to the working
// directory under its export name.
func (c *command) writeDocument(out io.Writer, res *document.ExportResult) error {
	path := c.output
	if path == "" {
		path = res.Filename
	}
	if path == "-" {
		_, err := out.Write(res.Data)
		return err
	}
	if err := os.WriteFile(path, res.Data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%s)\n", path, res.MediaType)
	return nil
}

// errUsage reports whether err came from flag parsing.
func errUsage(err error) bool {
	return errors.Is(err, flag.ErrHelp) || strings.HasPrefix(err.Error(), "usage:") ||
		strings.HasPrefix(err.Error(), "flag provided but not defined")
}
