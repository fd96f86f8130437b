// Package document provides the Document Manager that runs the three
// pipeline stages (extract, translate, export) and records each run in the
// job history.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"doctranslate/internal/assembler"
	"doctranslate/internal/history"
	"doctranslate/internal/model"
	"doctranslate/internal/parser"
	"doctranslate/internal/translate"
)

// ErrInvalidRequest marks a malformed stage request (missing file, bad
// content JSON, invalid language code).
var ErrInvalidRequest = errors.New("invalid request")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// DocumentManager orchestrates the extract, translate and export stages.
// Each call is independent: bundles are passed in and out, never kept.
type DocumentManager struct {
	parser    *parser.DocumentParser
	assembler *assembler.Assembler
	history   history.Recorder

	mu           sync.RWMutex
	orchestrator *translate.Orchestrator
	sourceLang   string
	targetLang   string
}

// NewDocumentManager creates a new DocumentManager with the given
// dependencies. A nil recorder disables history.
func NewDocumentManager(
	p *parser.DocumentParser,
	o *translate.Orchestrator,
	a *assembler.Assembler,
	h history.Recorder,
) *DocumentManager {
	if h == nil {
		h = history.Discard{}
	}
	return &DocumentManager{
		parser:       p,
		assembler:    a,
		history:      h,
		orchestrator: o,
		sourceLang:   translate.AutoDetect,
		targetLang:   translate.DefaultTarget,
	}
}

// UpdateOrchestrator replaces the translation orchestrator (used after a
// provider config change).
func (dm *DocumentManager) UpdateOrchestrator(o *translate.Orchestrator) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.orchestrator = o
}

// SetDefaultLanguages sets the languages used when a translate request
// leaves them empty.
func (dm *DocumentManager) SetDefaultLanguages(source, target string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if source != "" {
		dm.sourceLang = source
	}
	if target != "" {
		dm.targetLang = target
	}
}

// ExtractResult is the output of the extract stage.
type ExtractResult struct {
	Bundle  *model.Bundle
	Content json.RawMessage
}

// Extract parses data as the document named filename.
func (dm *DocumentManager) Extract(ctx context.Context, data []byte, filename string) (*ExtractResult, error) {
	start := time.Now()
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	job := &history.Job{Stage: history.StageExtract, FileName: filename}

	res, err := dm.extract(ctx, data, filename)
	if res != nil {
		job.Format = string(res.Bundle.Format)
		job.Units = res.Bundle.Len()
	}
	dm.finish(ctx, job, start, err)
	return res, err
}

func (dm *DocumentManager) extract(ctx context.Context, data []byte, filename string) (*ExtractResult, error) {
	if filename == "" || filename == "." {
		return nil, invalid("no file name")
	}
	if _, err := model.FormatFromFilename(filename); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, invalid("file is empty")
	}

	b, err := dm.parser.Parse(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	content, err := b.MarshalContent()
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return &ExtractResult{Bundle: b, Content: content}, nil
}

// TranslateRequest is the input of the translate stage.
type TranslateRequest struct {
	FileType         string
	Content          []byte
	OriginalFilename string
	SourceLang       string
	TargetLang       string
}

// TranslateResult is the output of the translate stage.
type TranslateResult struct {
	Bundle  *model.Bundle
	Content json.RawMessage
	Stats   translate.Stats
}

// Translate fills the translation of every unit in req.Content. Provider
// failures degrade per unit and are only visible in Stats.
func (dm *DocumentManager) Translate(ctx context.Context, req TranslateRequest) (*TranslateResult, error) {
	start := time.Now()
	job := &history.Job{Stage: history.StageTranslate, FileName: req.OriginalFilename, Format: req.FileType}

	res, err := dm.translate(ctx, req, job)
	if res != nil {
		job.Units = res.Stats.Units
		job.Failed = res.Stats.Failed
	}
	dm.finish(ctx, job, start, err)
	return res, err
}

func (dm *DocumentManager) translate(ctx context.Context, req TranslateRequest, job *history.Job) (*TranslateResult, error) {
	b, err := decodeBundle(req.FileType, req.Content)
	if err != nil {
		return nil, err
	}
	b.Filename = req.OriginalFilename

	dm.mu.RLock()
	o := dm.orchestrator
	source, target := dm.sourceLang, dm.targetLang
	dm.mu.RUnlock()
	if o == nil {
		return nil, model.TranslationFailed(errors.New("no translation provider configured"))
	}

	if s := strings.TrimSpace(req.SourceLang); s != "" {
		source = s
	}
	if t := strings.TrimSpace(req.TargetLang); t != "" {
		target = t
	}
	if target, err = translate.NormalizeTarget(target); err != nil {
		return nil, invalid("%v", err)
	}
	job.SourceLang, job.TargetLang = source, target

	stats := o.TranslateBundle(ctx, b, source, target)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := b.MarshalContent()
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return &TranslateResult{Bundle: b, Content: content, Stats: stats}, nil
}

// ExportRequest is the input of the export stage.
type ExportRequest struct {
	FileType          string
	TranslatedContent []byte
	Original          []byte
	OriginalFilename  string
}

// ExportResult is a finished translated document.
type ExportResult struct {
	Data      []byte
	MediaType string
	Filename  string
}

// ContentDisposition returns the attachment header value for the result.
func (r *ExportResult) ContentDisposition() string {
	return model.ContentDisposition(r.Filename)
}

// Export writes the translations of req.TranslatedContent into the original
// document.
func (dm *DocumentManager) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	start := time.Now()
	job := &history.Job{Stage: history.StageExport, FileName: req.OriginalFilename, Format: req.FileType}

	res, units, err := dm.export(ctx, req)
	job.Units = units
	dm.finish(ctx, job, start, err)
	return res, err
}

func (dm *DocumentManager) export(ctx context.Context, req ExportRequest) (*ExportResult, int, error) {
	b, err := decodeBundle(req.FileType, req.TranslatedContent)
	if err != nil {
		return nil, 0, err
	}
	if len(req.Original) == 0 {
		return nil, b.Len(), invalid("original file is empty")
	}
	b.Filename = filepath.Base(strings.ReplaceAll(req.OriginalFilename, "\\", "/"))

	out, err := dm.assembler.Reassemble(ctx, req.Original, b)
	if err != nil {
		return nil, b.Len(), err
	}
	return &ExportResult{
		Data:      out.Data,
		MediaType: out.MediaType,
		Filename:  model.ExportFilename(req.OriginalFilename, b.Format),
	}, b.Len(), nil
}

// decodeBundle parses a wire file_type and unit list.
func decodeBundle(fileType string, content []byte) (*model.Bundle, error) {
	format, err := model.ParseFormat(fileType)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, invalid("content is empty")
	}
	b, err := model.UnmarshalContent(format, content)
	if err != nil {
		if errors.Is(err, model.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, invalid("%v", err)
	}
	return b, nil
}

// finish stamps job with the outcome of a stage and records it.
func (dm *DocumentManager) finish(ctx context.Context, job *history.Job, start time.Time, err error) {
	job.Duration = time.Since(start)
	job.Status = history.StatusSuccess
	if err != nil {
		job.Status = history.StatusFailed
		job.Error = err.Error()
		log.Printf("[Document] %s %q failed: %v", job.Stage, job.FileName, err)
	}
	history.Save(ctx, dm.history, job)
}
