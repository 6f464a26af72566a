package web_fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/groundchat/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/groundchat/tools/web_fetch/models"
	"github.com/mohammad-safakhou/groundchat/tools/web_fetch/rod"
)

const (
	DefaultTimeout   = 15000 * time.Millisecond
	DefaultGrace     = 2 * time.Second
	DefaultUserAgent = "GroundChat/1.0 (+contact@example.com)"
)

// ErrUnsupportedRenderer is returned by NewRenderer for unknown renderer types.
var ErrUnsupportedRenderer = errors.New("unsupported renderer type")

// Renderer loads a URL in an isolated headless browser and returns its DOM.
// Every call owns its browser and releases it before returning.
type Renderer interface {
	Render(ctx context.Context, url string) (models.Page, error)
}

type RendererType string

const (
	ChromedpRendererType RendererType = "chromedp"
	RodRendererType      RendererType = "rod"
)

// Options configures a renderer. Zero values fall back to the defaults above.
type Options struct {
	Timeout   time.Duration
	Grace     time.Duration
	UserAgent string
	Headless  bool
}

func NewRenderer(rendererType RendererType, opts Options) (Renderer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	switch rendererType {
	case ChromedpRendererType:
		return &chromedp.Fetch{Timeout: opts.Timeout, Grace: opts.Grace, UserAgent: opts.UserAgent, Headless: opts.Headless}, nil
	case RodRendererType:
		return &rod.Fetch{Timeout: opts.Timeout, Grace: opts.Grace, UserAgent: opts.UserAgent, Headless: opts.Headless}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRenderer, rendererType)
	}
}
