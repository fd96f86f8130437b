// Package translate applies a translation provider to every addressable unit
// of a bundle, chunking long text and degrading to pass-through on failure.
package translate

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"doctranslate/internal/chunker"
	"doctranslate/internal/errlog"
	"doctranslate/internal/model"
)

// Translator is a translation provider. source is a language code or "auto".
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Func adapts a plain function to the Translator interface.
type Func func(ctx context.Context, text, source, target string) (string, error)

// Translate calls f.
func (f Func) Translate(ctx context.Context, text, source, target string) (string, error) {
	return f(ctx, text, source, target)
}

const (
	// AutoDetect asks the provider to detect the source language.
	AutoDetect = "auto"
	// DefaultTarget is the target language when none is given.
	DefaultTarget = "vi"
)

// Stats summarizes one TranslateBundle run.
type Stats struct {
	Units      int           `json:"units"`
	Translated int           `json:"translated"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// Orchestrator translates bundles unit by unit.
type Orchestrator struct {
	provider Translator
	chunker  *chunker.TextChunker
	// Workers bounds how many units are translated at once. Values below 2
	// translate sequentially.
	Workers int
}

// NewOrchestrator creates an Orchestrator using provider and chunks of at
// most maxChunk runes (chunker.DefaultMaxLength when maxChunk <= 0).
func NewOrchestrator(provider Translator, maxChunk int) *Orchestrator {
	tc := chunker.NewTextChunker()
	if maxChunk > 0 {
		tc.MaxLength = maxChunk
	}
	return &Orchestrator{provider: provider, chunker: tc, Workers: 1}
}

// NormalizeTarget validates a target language code and returns its
// canonical form. An empty code selects DefaultTarget.
func NormalizeTarget(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return DefaultTarget, nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid target language %q: %w", code, err)
	}
	return tag.String(), nil
}

// TranslateBundle fills Translated on every unit of b in address order.
// A unit whose translation fails keeps its original text as translation;
// the batch always completes.
func (o *Orchestrator) TranslateBundle(ctx context.Context, b *model.Bundle, sourceHint, target string) Stats {
	start := time.Now()
	units := b.Units()
	stats := Stats{Units: len(units)}

	var translated, skipped, failed atomic.Int64
	work := func(u model.Unit) {
		text, outcome := o.translateUnit(ctx, u, sourceHint, target)
		u.Translated = text
		switch outcome {
		case outcomeSkipped:
			skipped.Add(1)
		case outcomeFailed:
			failed.Add(1)
		default:
			translated.Add(1)
		}
	}

	if o.Workers < 2 {
		for _, u := range units {
			work(u)
		}
	} else {
		// Each unit writes only its own slot, so results stay in address order.
		var g errgroup.Group
		g.SetLimit(o.Workers)
		for _, u := range units {
			g.Go(func() error {
				work(u)
				return nil
			})
		}
		_ = g.Wait()
	}

	stats.Translated = int(translated.Load())
	stats.Skipped = int(skipped.Load())
	stats.Failed = int(failed.Load())
	stats.Duration = time.Since(start)
	log.Printf("[Translate] %s bundle: %d units, %d translated, %d skipped, %d failed in %v",
		b.Format, stats.Units, stats.Translated, stats.Skipped, stats.Failed, stats.Duration.Round(time.Millisecond))
	return stats
}

type outcome int

const (
	outcomeTranslated outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (o *Orchestrator) translateUnit(ctx context.Context, u model.Unit, sourceHint, target string) (string, outcome) {
	if strings.TrimSpace(u.Content) == "" {
		return u.Content, outcomeSkipped
	}
	out, err := o.TranslateText(ctx, u.Content, sourceHint, target)
	if err != nil {
		log.Printf("[Translate] %s kept original text: %v", u.Address, err)
		errlog.Logf("[Translate] unit %s passed through untranslated: %v", u.Address, err)
		return u.Content, outcomeFailed
	}
	return out, outcomeTranslated
}

// TranslateText translates one text, chunking it when it exceeds the chunk
// limit. Blank text is returned unchanged. Errors wrap
// model.ErrTranslationUnavailable.
func (o *Orchestrator) TranslateText(ctx context.Context, text, sourceHint, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if target == "" {
		target = DefaultTarget
	}
	source := ChooseSource(text, sourceHint)

	chunks := o.chunker.Split(text)
	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", model.TranslationFailed(err)
		}
		res, err := o.provider.Translate(ctx, chunk, source, target)
		if err != nil {
			return "", model.TranslationFailed(err)
		}
		out[i] = res
	}
	return chunker.Join(out), nil
}
