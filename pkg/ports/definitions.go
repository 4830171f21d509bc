package ports

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

// LinkRepository defines storage operations for links.
// Lookups return (nil, nil) when no row matches.
type LinkRepository interface {
	Create(ctx context.Context, link *domain.Link) error // domain.ErrConflict on duplicate short code
	GetByShortCode(ctx context.Context, code string) (*domain.Link, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error)
	Update(ctx context.Context, link *domain.Link) error // metadata columns only
	Delete(ctx context.Context, link *domain.Link) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	Dump(ctx context.Context) ([]domain.Link, error) // For migration

	// Clicks
	RecordClick(ctx context.Context, link *domain.Link, click *domain.Click) error
	ListClicks(ctx context.Context, linkID string) ([]domain.Click, error)
} // LinkRepository ends here

// ShortenInput carries the create request. Nil pointers mean "not provided".
type ShortenInput struct {
	OriginalURL string
	CustomAlias string
	ExpiryDays  *int
	OwnerID     *string
	Tags        []string
	Description string
}

// LinkService defines the code registry operations
type LinkService interface {
	Shorten(ctx context.Context, in ShortenInput) (*domain.Link, error)
	GetLinkByShortCode(ctx context.Context, code string) (*domain.Link, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error)
	UpdateLink(ctx context.Context, code string, requesterID *string, patch domain.LinkPatch) (*domain.Link, error)
	DeleteLink(ctx context.Context, code string, requesterID *string) error
	SweepExpired(ctx context.Context) (int64, error)
	ShortURL(code string) string
}

// AnalyticsService defines redirect gating, click recording and statistics
type AnalyticsService interface {
	ResolveForRedirect(ctx context.Context, code string) (*domain.Link, error)
	RecordClick(ctx context.Context, link *domain.Link, in domain.ClickInput) error
	GetAnalytics(ctx context.Context, link *domain.Link) (*domain.Analytics, error)
}
