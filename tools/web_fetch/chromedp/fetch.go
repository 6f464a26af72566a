package chromedp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/mohammad-safakhou/groundchat/tools/web_fetch/models"
)

type Fetch struct {
	Timeout   time.Duration // navigation budget, until network idle
	Grace     time.Duration // time allowed to read the DOM once the budget is spent
	UserAgent string
	Headless  bool
}

func (f Fetch) Render(ctx context.Context, url string) (models.Page, error) {
	if strings.TrimSpace(url) == "" {
		return models.Page{}, errors.New("invalid url")
	}
	t0 := time.Now()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.Headless),
		chromedp.UserAgent(f.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	// start the browser before arming the listener so about:blank events are not seen
	if err := chromedp.Run(bctx, page.SetLifecycleEventsEnabled(true)); err != nil {
		return models.Page{URL: url}, fmt.Errorf("start browser: %w", err)
	}

	idle := newIdleWatch()
	chromedp.ListenTarget(bctx, idle.observe)

	navCtx, cancelNav := context.WithTimeout(bctx, f.Timeout)
	defer cancelNav()

	idle.arm()
	navErr := chromedp.Run(navCtx, chromedp.Navigate(url))
	if navErr == nil {
		select {
		case <-idle.done:
		case <-navCtx.Done():
		}
	}

	timedOut := errors.Is(navCtx.Err(), context.DeadlineExceeded)
	if ctx.Err() != nil {
		return models.Page{URL: url, RenderMS: since(t0)}, ctx.Err()
	}
	if navErr != nil && !timedOut {
		return models.Page{URL: url, RenderMS: since(t0)}, fmt.Errorf("navigate: %w", navErr)
	}

	readCtx, cancelRead := context.WithTimeout(bctx, f.Grace)
	defer cancelRead()
	var html string
	if err := chromedp.Run(readCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return models.Page{URL: url, TimedOut: timedOut, RenderMS: since(t0)}, fmt.Errorf("read dom: %w", err)
	}

	return models.Page{
		URL:      url,
		HTML:     html,
		TimedOut: timedOut,
		RenderMS: since(t0),
	}, nil
}

// idleWatch closes done when the document committed by the armed navigation
// reports networkIdle. The first "init" lifecycle event after arming names
// the main frame's loader; later loaders belong to subframes.
type idleWatch struct {
	armed  atomic.Bool
	mu     sync.Mutex
	loader string
	idle   map[string]bool
	once   sync.Once
	done   chan struct{}
}

func newIdleWatch() *idleWatch {
	return &idleWatch{idle: make(map[string]bool), done: make(chan struct{})}
}

func (w *idleWatch) arm() { w.armed.Store(true) }

func (w *idleWatch) observe(ev interface{}) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok || !w.armed.Load() {
		return
	}
	loader := string(e.LoaderID)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch e.Name {
	case "init":
		if w.loader == "" {
			w.loader = loader
		}
	case "networkIdle":
		w.idle[loader] = true
	}
	if w.loader != "" && w.idle[w.loader] {
		w.once.Do(func() { close(w.done) })
	}
}

func since(t0 time.Time) int {
	return int(time.Since(t0) / time.Millisecond)
}
