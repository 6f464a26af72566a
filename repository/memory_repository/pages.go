package memory_repository

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/groundchat/models"
)

type entry struct {
	paragraphs []string
	expiresAt  time.Time
}

// PageRepository is an in-process page cache, for single-instance deployments and tests.
type PageRepository struct {
	mu    sync.RWMutex
	pages map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

func NewPageRepository(ttl time.Duration) *PageRepository {
	return &PageRepository{pages: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (r *PageRepository) SavePage(_ context.Context, identity string, content models.ExtractedContent) error {
	e := entry{paragraphs: append([]string(nil), content.Paragraphs...)}
	if r.ttl > 0 {
		e.expiresAt = r.now().Add(r.ttl)
	}
	r.mu.Lock()
	r.pages[identity] = e
	r.mu.Unlock()
	return nil
}

func (r *PageRepository) GetPage(_ context.Context, identity string) (models.ExtractedContent, error) {
	r.mu.RLock()
	e, ok := r.pages[identity]
	r.mu.RUnlock()
	if !ok {
		return models.ExtractedContent{}, models.ErrPageNotFound
	}
	now := r.now()
	if e.expired(now) {
		// a writer may have replaced the entry since the read lock was released
		r.mu.Lock()
		e, ok = r.pages[identity]
		if ok && e.expired(now) {
			delete(r.pages, identity)
			ok = false
		}
		r.mu.Unlock()
		if !ok {
			return models.ExtractedContent{}, models.ErrPageNotFound
		}
	}
	return models.ExtractedContent{Paragraphs: append([]string(nil), e.paragraphs...)}, nil
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Len returns the number of stored pages, expired ones included.
func (r *PageRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}
