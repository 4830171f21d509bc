package services

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

type AnalyticsService struct {
	repo ports.LinkRepository
	now  func() time.Time
}

func NewAnalyticsService(repo ports.LinkRepository) *AnalyticsService {
	return &AnalyticsService{repo: repo, now: time.Now}
}

// ResolveForRedirect returns the link behind code if it may be followed.
// Expiry is checked before the active flag.
func (s *AnalyticsService) ResolveForRedirect(ctx context.Context, code string) (*domain.Link, error) {
	link, err := s.repo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	if link.IsExpiredAt(s.now()) {
		return nil, domain.ErrExpired
	}
	if !link.IsActive {
		return nil, domain.ErrDeactivated
	}
	return link, nil
}

// RecordClick appends a click to the link's history. The repository applies the
// append and the counter increment together, so concurrent clicks are not lost.
// link itself is not modified; reload it to observe the new count.
func (s *AnalyticsService) RecordClick(ctx context.Context, link *domain.Link, in domain.ClickInput) error {
	click := domain.NewClick(in, s.now().UTC())
	return s.repo.RecordClick(ctx, link, &click)
}

// GetAnalytics loads the link's click history and summarizes it. The total is
// taken from the loaded history, so a count on link that went stale since it
// was read cannot fall below the window counts.
func (s *AnalyticsService) GetAnalytics(ctx context.Context, link *domain.Link) (*domain.Analytics, error) {
	clicks, err := s.repo.ListClicks(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	full := *link
	full.Clicks = clicks
	full.ClickCount = int64(len(clicks))
	a := full.Analytics(s.now())
	return &a, nil
}

var _ ports.AnalyticsService = (*AnalyticsService)(nil)
