package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const (
	codeLength = 7
	// maxCodeAttempts bounds the retry loop for generated codes that collide.
	maxCodeAttempts = 5
)

type LinkService struct {
	repo              ports.LinkRepository
	baseURL           string
	defaultExpiryDays *int
	now               func() time.Time
	newCode           func() (string, error)
}

// NewLinkService builds the code registry. defaultExpiryDays may be nil, in
// which case links without an explicit expiry never expire.
func NewLinkService(repo ports.LinkRepository, baseURL string, defaultExpiryDays *int) *LinkService {
	return &LinkService{
		repo:              repo,
		baseURL:           strings.TrimRight(baseURL, "/"),
		defaultExpiryDays: defaultExpiryDays,
		now:               time.Now,
		newCode: func() (string, error) {
			return generateShortCode(codeLength)
		},
	}
}

func (s *LinkService) Shorten(ctx context.Context, in ports.ShortenInput) (*domain.Link, error) {
	if in.OriginalURL == "" {
		return nil, fmt.Errorf("%w: original URL is required", domain.ErrValidation)
	}
	if !domain.ValidOriginalURL(in.OriginalURL) {
		return nil, fmt.Errorf("%w: URL must start with http:// or https://", domain.ErrValidation)
	}
	if in.ExpiryDays != nil && *in.ExpiryDays < 0 {
		return nil, fmt.Errorf("%w: expiry days must not be negative", domain.ErrValidation)
	}

	now := s.now().UTC()
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	link := &domain.Link{
		ID:          uuid.NewString(),
		OriginalURL: in.OriginalURL,
		OwnerID:     copyString(in.OwnerID),
		CreatedAt:   now,
		ExpiresAt:   s.expiresAt(now, in.ExpiryDays),
		IsActive:    true,
		Tags:        tags,
		Description: in.Description,
	}

	if in.CustomAlias != "" {
		if !domain.ValidAlias(in.CustomAlias) {
			return nil, fmt.Errorf("%w: alias %q is reserved or not a single path segment", domain.ErrValidation, in.CustomAlias)
		}
		// Check if custom alias exists
		existing, err := s.repo.GetByShortCode(ctx, in.CustomAlias)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: alias %q is taken", domain.ErrConflict, in.CustomAlias)
		}

		link.ShortCode = in.CustomAlias
		link.CustomAlias = true
		if err := s.repo.Create(ctx, link); err != nil {
			return nil, err
		}
		return link, nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		link.ShortCode = code

		err = s.repo.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
	}
	return nil, domain.ErrCodeSpaceExhausted
}

func (s *LinkService) expiresAt(now time.Time, expiryDays *int) *time.Time {
	days := 0
	switch {
	case expiryDays != nil && *expiryDays > 0:
		days = *expiryDays
	case s.defaultExpiryDays != nil && *s.defaultExpiryDays > 0:
		days = *s.defaultExpiryDays
	default:
		return nil
	}
	t := now.AddDate(0, 0, days)
	return &t
}

func (s *LinkService) GetLinkByShortCode(ctx context.Context, code string) (*domain.Link, error) {
	link, err := s.repo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	return link, nil
}

func (s *LinkService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	links, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.Link{}
	}
	return links, nil
}

func (s *LinkService) UpdateLink(ctx context.Context, code string, requesterID *string, patch domain.LinkPatch) (*domain.Link, error) {
	link, err := s.ownedLink(ctx, code, requesterID)
	if err != nil {
		return nil, err
	}

	link.Apply(patch)
	if err := s.repo.Update(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *LinkService) DeleteLink(ctx context.Context, code string, requesterID *string) error {
	link, err := s.ownedLink(ctx, code, requesterID)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, link)
}

// ownedLink loads the link and checks that requesterID owns it.
func (s *LinkService) ownedLink(ctx context.Context, code string, requesterID *string) (*domain.Link, error) {
	link, err := s.GetLinkByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !link.OwnedBy(requesterID) {
		return nil, domain.ErrForbidden
	}
	return link, nil
}

// SweepExpired removes every link whose expiry has passed, regardless of owner.
func (s *LinkService) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC())
}

func (s *LinkService) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateShortCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

var _ ports.LinkService = (*LinkService)(nil)
