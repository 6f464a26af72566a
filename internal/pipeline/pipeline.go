// Package pipeline runs one chat message through admission, resource lookup,
// fetching and answer generation.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mohammad-safakhou/groundchat/internal/answer"
	"github.com/mohammad-safakhou/groundchat/internal/fetch"
	"github.com/mohammad-safakhou/groundchat/internal/locator"
	"github.com/mohammad-safakhou/groundchat/internal/ratelimit"
	"github.com/mohammad-safakhou/groundchat/models"
	"github.com/mohammad-safakhou/groundchat/repository"
)

type Limiter interface {
	Admit(ctx context.Context, identity string) ratelimit.Decision
}

type Fetcher interface {
	Fetch(ctx context.Context, identity string) fetch.Outcome
}

type Answerer interface {
	Answer(ctx context.Context, userText string, grounding *answer.Grounding, history []models.ConversationTurn) (models.GroundedAnswer, error)
}

// Deps are the collaborators of a Pipeline. All are required except Logger.
type Deps struct {
	Limiter  Limiter
	Cache    repository.PageRepository
	Fetcher  Fetcher
	Answerer Answerer
	Logger   *zap.Logger
}

type Request struct {
	Message string
	History []models.ConversationTurn
}

// Response is returned alongside any error so callers can always report the
// rate-limit decision.
type Response struct {
	Answer   models.GroundedAnswer
	URL      string
	Decision ratelimit.Decision
	CacheHit bool
	// Partial is set when the answer is grounded on content read after the navigation budget elapsed.
	Partial bool
}

type Pipeline struct {
	limiter  Limiter
	cache    repository.PageRepository
	fetcher  Fetcher
	answerer Answerer
	logger   *zap.Logger
	tracer   trace.Tracer

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight owns the context of one shared fetch. It is cancelled once every
// caller waiting on it has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "pipeline"))
	pipelineMetricsOnce.Do(func() { initPipelineMetrics(logger) })
	return &Pipeline{
		limiter:  deps.Limiter,
		cache:    deps.Cache,
		fetcher:  deps.Fetcher,
		answerer: deps.Answerer,
		logger:   logger,
		tracer:   otel.Tracer("groundchat/pipeline"),
		flights:  make(map[string]*flight),
	}
}

// Run processes one message for the client identified by clientID. Every
// failure is a *Error.
func (p *Pipeline) Run(ctx context.Context, clientID string, req Request) (Response, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	resp, err := p.run(ctx, clientID, req)
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.String("url", resp.URL),
		attribute.Bool("cache_hit", resp.CacheHit),
	)
	recordRequest(ctx, outcome)
	return resp, err
}

func (p *Pipeline) run(ctx context.Context, clientID string, req Request) (Response, error) {
	var resp Response

	resp.Decision = p.limiter.Admit(ctx, clientID)
	recordDecision(ctx, resp.Decision.Allowed)
	if !resp.Decision.Allowed {
		cause := ErrRateLimited
		if resp.Decision.FailedClosed {
			cause = ErrLimiterUnavailable
		}
		return resp, &Error{Kind: RateLimited, Err: cause}
	}

	loc := locator.Extract(req.Message)
	if !loc.Found {
		ans, err := p.answer(ctx, loc.Remainder, nil, req.History, "")
		resp.Answer = ans
		return resp, err
	}
	resp.URL = loc.Identity

	content, hit := p.lookup(ctx, loc.Identity)
	resp.CacheHit = hit
	if !hit {
		out := p.fetchShared(ctx, loc.Identity, loc.Raw)
		switch out.Kind {
		case fetch.NotFound:
			return resp, &Error{Kind: ResourceNotFound, URL: loc.Identity, Err: ErrPageNotFound}
		case fetch.TransientError:
			return resp, &Error{Kind: FetchTransientFailure, URL: loc.Identity, Err: out.Err}
		case fetch.Partial:
			resp.Partial = true
		}
		content = out.Content
	}

	grounding := &answer.Grounding{Source: loc.Identity, Paragraphs: content.Paragraphs}
	ans, err := p.answer(ctx, loc.Remainder, grounding, req.History, loc.Identity)
	resp.Answer = ans
	return resp, err
}

func (p *Pipeline) answer(ctx context.Context, text string, grounding *answer.Grounding, history []models.ConversationTurn, url string) (models.GroundedAnswer, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Answer")
	defer span.End()

	ans, err := p.answerer.Answer(ctx, text, grounding, history)
	if err == nil {
		return ans, nil
	}
	if errors.Is(err, answer.ErrGenerationFormat) {
		return models.GroundedAnswer{}, &Error{Kind: GenerationFormatError, URL: url, Err: err}
	}
	p.logger.Error("answer generation failed", zap.String("url", url), zap.Error(err))
	return models.GroundedAnswer{}, &Error{Kind: InternalFailure, URL: url, Err: err}
}

// lookup treats every cache read failure as a miss.
func (p *Pipeline) lookup(ctx context.Context, identity string) (models.ExtractedContent, bool) {
	content, err := p.cache.GetPage(ctx, identity)
	switch {
	case err == nil && !content.IsEmpty():
		recordCacheLookup(ctx, true)
		return content, true
	case err != nil && !errors.Is(err, models.ErrPageNotFound):
		p.logger.Warn("cache read failed, treating as miss", zap.String("url", identity), zap.Error(err))
	}
	recordCacheLookup(ctx, false)
	return models.ExtractedContent{}, false
}

// fetchShared collapses concurrent fetches of one identity into a single
// render of target, the URL as the user wrote it. Each caller waits on its
// own context.
func (p *Pipeline) fetchShared(ctx context.Context, identity, target string) fetch.Outcome {
	f := p.join(ctx, identity)
	defer p.leave(identity, f)

	ch := p.group.DoChan(identity, func() (interface{}, error) {
		return p.fetchAndStore(f.ctx, identity, target), nil
	})
	select {
	case r := <-ch:
		return r.Val.(fetch.Outcome)
	case <-ctx.Done():
		return fetch.Outcome{Kind: fetch.TransientError, Err: ctx.Err()}
	}
}

func (p *Pipeline) join(ctx context.Context, identity string) *flight {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.flights[identity]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		p.flights[identity] = f
	}
	f.waiters++
	return f
}

func (p *Pipeline) leave(identity string, f *flight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if p.flights[identity] == f {
		delete(p.flights, identity)
		// the cancelled call may still be winding down; later callers must start a new one
		p.group.Forget(identity)
	}
}

func (p *Pipeline) fetchAndStore(ctx context.Context, identity, target string) fetch.Outcome {
	ctx, span := p.tracer.Start(ctx, "pipeline.Fetch", trace.WithAttributes(attribute.String("url", identity)))
	defer span.End()

	start := time.Now()
	out := p.fetcher.Fetch(ctx, target)
	recordFetch(ctx, out.Kind.String(), time.Since(start))
	span.SetAttributes(attribute.String("kind", out.Kind.String()))

	if out.Cacheable() {
		if err := p.cache.SavePage(ctx, identity, out.Content); err != nil {
			p.logger.Warn("cache write failed", zap.String("url", identity), zap.Error(err))
		}
	}
	return out
}
