// Package memory keeps links in process memory. It backs unit tests and
// single-process demos; data is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	links  map[string]*domain.Link // by short code
	clicks map[string][]domain.Click
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		links:  make(map[string]*domain.Link),
		clicks: make(map[string][]domain.Click),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, link *domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.ShortCode]; exists {
		return domain.ErrConflict
	}
	stored := link.Summary()
	stored.Tags = append([]string(nil), link.Tags...)
	stored.ClickCount = 0
	r.links[link.ShortCode] = &stored
	return nil
}

func (r *MemoryRepository) GetByShortCode(ctx context.Context, code string) (*domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, exists := r.links[code]
	if !exists {
		return nil, nil
	}
	linkCopy := *link
	return &linkCopy, nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := []domain.Link{}
	for _, l := range r.links {
		if l.OwnerID != nil && *l.OwnerID == ownerID {
			links = append(links, *l)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

func (r *MemoryRepository) Update(ctx context.Context, link *domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.links[link.ShortCode]
	if !exists || stored.ID != link.ID {
		return nil
	}
	stored.IsActive = link.IsActive
	stored.Tags = append([]string(nil), link.Tags...)
	stored.Description = link.Description
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, link *domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, exists := r.links[link.ShortCode]; exists && stored.ID == link.ID {
		delete(r.links, link.ShortCode)
	}
	delete(r.clicks, link.ID)
	return nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for code, l := range r.links {
		if l.ExpiresAt != nil && l.ExpiresAt.Before(before) {
			delete(r.links, code)
			delete(r.clicks, l.ID)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := make([]domain.Link, 0, len(r.links))
	for _, l := range r.links {
		full := *l
		full.Clicks = append([]domain.Click{}, r.clicks[l.ID]...)
		links = append(links, full)
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.Before(links[j].CreatedAt)
	})
	return links, nil
}

// RecordClick appends the click and bumps the counter under one lock.
func (r *MemoryRepository) RecordClick(ctx context.Context, link *domain.Link, click *domain.Click) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.links[link.ShortCode]
	if !exists || stored.ID != link.ID {
		return domain.ErrNotFound
	}
	r.clicks[link.ID] = append(r.clicks[link.ID], *click)
	stored.ClickCount++
	return nil
}

func (r *MemoryRepository) ListClicks(ctx context.Context, linkID string) ([]domain.Click, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.Click{}, r.clicks[linkID]...), nil
}

// Ensure interface compliance
var _ ports.LinkRepository = (*MemoryRepository)(nil)
