// Package extract turns downloaded attachment files into plain text. Backends
// are tried in a fixed order per file type; the first one producing non-empty
// text wins, and every attempt is recorded for the extraction audit trail.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minki/fundscan/internal/models"
)

// ErrNoBackend is returned when no configured backend supports a file.
var ErrNoBackend = errors.New("no extraction backend supports file")

// Backend is one text extraction strategy.
type Backend interface {
	Name() models.DataSource
	Supports(path string) bool
	Extract(ctx context.Context, path string) (string, error)
}

// Attempt is the audit record of one backend try.
type Attempt struct {
	Source   models.DataSource
	Chars    int
	Duration time.Duration
	Err      error
}

// Output is the result of extracting one file.
type Output struct {
	Text     string
	Source   models.DataSource
	Attempts []Attempt
}

// Engine runs backends in registration order.
type Engine struct {
	backends []Backend
}

func NewEngine(backends ...Backend) *Engine {
	return &Engine{backends: backends}
}

// ExtractFile tries each supporting backend in order and returns the first
// non-empty text. An empty result without error counts as a miss and the next
// backend runs. All attempts are returned either way.
func (e *Engine) ExtractFile(ctx context.Context, path string) (Output, error) {
	out := Output{}
	supported := false

	for _, b := range e.backends {
		if !b.Supports(path) {
			continue
		}
		supported = true

		start := time.Now()
		text, err := b.Extract(ctx, path)
		attempt := Attempt{
			Source:   b.Name(),
			Chars:    len(text),
			Duration: time.Since(start),
			Err:      err,
		}
		out.Attempts = append(out.Attempts, attempt)

		if err != nil {
			zap.S().Debugw("extraction backend failed, trying next",
				"backend", b.Name(), "file", path, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			zap.S().Debugw("extraction backend returned empty text, trying next",
				"backend", b.Name(), "file", path)
			continue
		}

		out.Text = text
		out.Source = b.Name()
		return out, nil
	}

	if !supported {
		return out, fmt.Errorf("%w: %s", ErrNoBackend, path)
	}
	return out, fmt.Errorf("all %d backends failed for %s", len(out.Attempts), path)
}

// SourcesAttempted flattens the attempt list for the audit log.
func (o Output) SourcesAttempted() []string {
	var out []string
	for _, a := range o.Attempts {
		out = append(out, string(a.Source))
	}
	return out
}
