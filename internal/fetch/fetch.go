// Package fetch turns a resource identity into classified page content.
package fetch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/groundchat/internal/classify"
	"github.com/mohammad-safakhou/groundchat/models"
	"github.com/mohammad-safakhou/groundchat/tools/web_fetch"
)

// ErrNoContent is carried by a TransientError outcome when the navigation budget
// elapsed and nothing could be read from the page.
var ErrNoContent = errors.New("navigation timed out with no content")

type Kind int

const (
	Success Kind = iota
	// Partial means the navigation budget elapsed but content was extracted.
	// Partial content is answered from but never cached.
	Partial
	NotFound
	TransientError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Partial:
		return "partial"
	case NotFound:
		return "not_found"
	case TransientError:
		return "transient_error"
	default:
		return "unknown"
	}
}

type Outcome struct {
	Kind    Kind
	Content models.ExtractedContent
	Err     error
}

// Cacheable reports whether the outcome may be written to the result cache.
func (o Outcome) Cacheable() bool {
	return o.Kind == Success && !o.Content.IsEmpty()
}

type Fetcher struct {
	renderer   web_fetch.Renderer
	classifier *classify.Classifier
	maxChars   int
	logger     *zap.Logger
}

func New(renderer web_fetch.Renderer, classifier *classify.Classifier, maxChars int, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		renderer:   renderer,
		classifier: classifier,
		maxChars:   maxChars,
		logger:     logger.With(zap.String("component", "fetch")),
	}
}

// Fetch renders identity, extracts its content and classifies it. It never
// returns an error directly; failures are TransientError outcomes.
func (f *Fetcher) Fetch(ctx context.Context, identity string) Outcome {
	start := time.Now()
	page, err := f.renderer.Render(ctx, identity)
	if err != nil {
		f.logger.Warn("render failed", zap.String("url", identity), zap.Error(err))
		return Outcome{Kind: TransientError, Err: err}
	}

	signals, content, err := Parse(page.HTML, identity, f.maxChars)
	if err != nil {
		return Outcome{Kind: TransientError, Err: err}
	}

	out := f.decide(page.TimedOut, signals, content)
	f.logger.Debug("fetched",
		zap.String("url", identity),
		zap.Stringer("kind", out.Kind),
		zap.Int("paragraphs", len(content.Paragraphs)),
		zap.Int("render_ms", page.RenderMS),
		zap.Duration("elapsed", time.Since(start)))
	return out
}

func (f *Fetcher) decide(timedOut bool, signals classify.Signals, content models.ExtractedContent) Outcome {
	if f.classifier.Classify(signals) == classify.NotFound {
		return Outcome{Kind: NotFound}
	}
	if timedOut {
		if content.IsEmpty() {
			return Outcome{Kind: TransientError, Err: ErrNoContent}
		}
		return Outcome{Kind: Partial, Content: content}
	}
	return Outcome{Kind: Success, Content: content}
}
