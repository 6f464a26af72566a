package rod

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/mohammad-safakhou/groundchat/tools/web_fetch/models"
)

// idleQuiet is how long the network must stay silent to count as idle.
const idleQuiet = 500 * time.Millisecond

type Fetch struct {
	Timeout   time.Duration
	Grace     time.Duration
	UserAgent string
	Headless  bool
}

func (f Fetch) Render(ctx context.Context, url string) (models.Page, error) {
	if strings.TrimSpace(url) == "" {
		return models.Page{}, errors.New("invalid url")
	}
	t0 := time.Now()

	l := launcher.New().Context(ctx).Headless(f.Headless)
	defer func() {
		l.Kill()
		l.Cleanup()
	}()
	controlURL, err := l.Launch()
	if err != nil {
		return models.Page{URL: url}, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return models.Page{URL: url}, fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = browser.Close() }()

	p, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return models.Page{URL: url}, fmt.Errorf("open page: %w", err)
	}
	if f.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.UserAgent}); err != nil {
			return models.Page{URL: url}, fmt.Errorf("set user agent: %w", err)
		}
	}

	navCtx, cancelNav := context.WithTimeout(ctx, f.Timeout)
	defer cancelNav()
	nav := p.Context(navCtx)

	wait := nav.WaitRequestIdle(idleQuiet, nil, nil, nil)
	navErr := nav.Navigate(url)
	if navErr == nil {
		wait()
	}

	timedOut := errors.Is(navCtx.Err(), context.DeadlineExceeded)
	if ctx.Err() != nil {
		return models.Page{URL: url, RenderMS: since(t0)}, ctx.Err()
	}
	if navErr != nil && !timedOut {
		return models.Page{URL: url, RenderMS: since(t0)}, fmt.Errorf("navigate: %w", navErr)
	}

	readCtx, cancelRead := context.WithTimeout(ctx, f.Grace)
	defer cancelRead()
	html, err := p.Context(readCtx).HTML()
	if err != nil {
		return models.Page{URL: url, TimedOut: timedOut, RenderMS: since(t0)}, fmt.Errorf("read dom: %w", err)
	}

	return models.Page{
		URL:      url,
		HTML:     html,
		TimedOut: timedOut,
		RenderMS: since(t0),
	}, nil
}

func since(t0 time.Time) int {
	return int(time.Since(t0) / time.Millisecond)
}
