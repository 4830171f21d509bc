package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

var fixedNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestLinkService(defaultDays *int) (*LinkService, *memory.MemoryRepository) {
	repo := memory.NewMemoryRepository()
	s := NewLinkService(repo, "https://sho.rt/", defaultDays)
	s.now = func() time.Time { return fixedNow }
	return s, repo
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func TestShortenGeneratesCode(t *testing.T) {
	s, _ := newTestLinkService(nil)

	link, err := s.Shorten(context.Background(), ports.ShortenInput{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[a-zA-Z0-9]{7}$`), link.ShortCode)
	assert.NotEmpty(t, link.ID)
	assert.False(t, link.CustomAlias)
	assert.True(t, link.IsActive)
	assert.Nil(t, link.ExpiresAt)
	assert.Nil(t, link.OwnerID)
	assert.Equal(t, fixedNow, link.CreatedAt)
	assert.Equal(t, []string{}, link.Tags)
	assert.False(t, link.IsExpiredAt(fixedNow.AddDate(100, 0, 0)))
}

func TestShortenValidation(t *testing.T) {
	s, _ := newTestLinkService(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ports.ShortenInput
	}{
		{"missing url", ports.ShortenInput{}},
		{"no scheme", ports.ShortenInput{OriginalURL: "example.com"}},
		{"bad scheme", ports.ShortenInput{OriginalURL: "javascript:alert(1)"}},
		{"negative expiry", ports.ShortenInput{OriginalURL: "https://example.com", ExpiryDays: intPtr(-1)}},
		{"alias shadows health route", ports.ShortenInput{OriginalURL: "https://example.com", CustomAlias: "healthz"}},
		{"alias shadows metrics route", ports.ShortenInput{OriginalURL: "https://example.com", CustomAlias: "metrics"}},
		{"alias with slash", ports.ShortenInput{OriginalURL: "https://example.com", CustomAlias: "a/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Shorten(ctx, tt.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestShortenCustomAliasConflict(t *testing.T) {
	s, _ := newTestLinkService(nil)
	ctx := context.Background()

	_, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	promo, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://example.org/sale", CustomAlias: "promo"})
	require.NoError(t, err)
	assert.Equal(t, "promo", promo.ShortCode)
	assert.True(t, promo.CustomAlias)

	_, err = s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://example.net", CustomAlias: "promo"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.GetLinkByShortCode(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/sale", got.OriginalURL)
}

func TestShortenRetriesGeneratedCollisions(t *testing.T) {
	s, repo := newTestLinkService(nil)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Link{ID: "x", ShortCode: "AAAAAAA"}))

	codes := []string{"AAAAAAA", "AAAAAAA", "BBBBBBB"}
	s.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	link, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBB", link.ShortCode)
}

func TestShortenExhaustsRetries(t *testing.T) {
	s, repo := newTestLinkService(nil)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Link{ID: "x", ShortCode: "AAAAAAA"}))

	calls := 0
	s.newCode = func() (string, error) {
		calls++
		return "AAAAAAA", nil
	}

	_, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://example.com"})
	assert.ErrorIs(t, err, domain.ErrCodeSpaceExhausted)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, maxCodeAttempts, calls)
}

func TestShortenGeneratorError(t *testing.T) {
	s, _ := newTestLinkService(nil)
	boom := errors.New("entropy unavailable")
	s.newCode = func() (string, error) { return "", boom }

	_, err := s.Shorten(context.Background(), ports.ShortenInput{OriginalURL: "https://example.com"})
	assert.ErrorIs(t, err, boom)
}

func TestShortenExpiry(t *testing.T) {
	ctx := context.Background()

	s, _ := newTestLinkService(intPtr(30))
	explicit, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://a.com", ExpiryDays: intPtr(3)})
	require.NoError(t, err)
	require.NotNil(t, explicit.ExpiresAt)
	assert.Equal(t, fixedNow.AddDate(0, 0, 3), *explicit.ExpiresAt)

	defaulted, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://a.com"})
	require.NoError(t, err)
	require.NotNil(t, defaulted.ExpiresAt)
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), *defaulted.ExpiresAt)

	zero, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://a.com", ExpiryDays: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), *zero.ExpiresAt)

	never, _ := newTestLinkService(nil)
	link, err := never.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://a.com"})
	require.NoError(t, err)
	assert.Nil(t, link.ExpiresAt)
}

func TestGetLinkByShortCodeExactMatch(t *testing.T) {
	s, _ := newTestLinkService(nil)
	ctx := context.Background()
	_, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://a.com", CustomAlias: "Promo"})
	require.NoError(t, err)

	_, err = s.GetLinkByShortCode(ctx, "promo")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetLinkByShortCode(ctx, "Prom")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByOwner(t *testing.T) {
	s, _ := newTestLinkService(nil)
	ctx := context.Background()

	for i, code := range []string{"first", "second", "third"} {
		s.now = func() time.Time { return fixedNow.Add(time.Duration(i) * time.Minute) }
		_, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://a.com", CustomAlias: code, OwnerID: strPtr("alice")})
		require.NoError(t, err)
	}
	_, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://a.com", CustomAlias: "anon"})
	require.NoError(t, err)

	links, err := s.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "third", links[0].ShortCode)
	assert.Equal(t, "first", links[2].ShortCode)

	none, err := s.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUpdateLinkOwnership(t *testing.T) {
	s, _ := newTestLinkService(nil)
	ctx := context.Background()

	_, err := s.Shorten(ctx, ports.ShortenInput{
		OriginalURL: "https://a.com", CustomAlias: "mine", OwnerID: strPtr("alice"),
		Tags: []string{"keep"}, Description: "original",
	})
	require.NoError(t, err)
	_, err = s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://a.com", CustomAlias: "anon"})
	require.NoError(t, err)

	_, err = s.UpdateLink(ctx, "missing", strPtr("alice"), domain.LinkPatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.UpdateLink(ctx, "mine", strPtr("bob"), domain.LinkPatch{IsActive: boolPtr(false)})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = s.UpdateLink(ctx, "mine", nil, domain.LinkPatch{IsActive: boolPtr(false)})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = s.UpdateLink(ctx, "anon", strPtr("bob"), domain.LinkPatch{IsActive: boolPtr(false)})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := s.UpdateLink(ctx, "mine", strPtr("alice"), domain.LinkPatch{IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, []string{"keep"}, updated.Tags)
	assert.Equal(t, "original", updated.Description)

	stored, err := s.GetLinkByShortCode(ctx, "mine")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, "original", stored.Description)
}

func TestDeleteLink(t *testing.T) {
	s, _ := newTestLinkService(nil)
	ctx := context.Background()
	_, err := s.Shorten(ctx, ports.ShortenInput{OriginalURL: "https://a.com", CustomAlias: "mine", OwnerID: strPtr("alice")})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteLink(ctx, "missing", strPtr("alice")), domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteLink(ctx, "mine", strPtr("bob")), domain.ErrForbidden)
	require.NoError(t, s.DeleteLink(ctx, "mine", strPtr("alice")))

	_, err = s.GetLinkByShortCode(ctx, "mine")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSweepExpired(t *testing.T) {
	s, repo := newTestLinkService(nil)
	ctx := context.Background()
	hourAgo := fixedNow.Add(-time.Hour)
	weekAgo := fixedNow.AddDate(0, 0, -7)
	tomorrow := fixedNow.AddDate(0, 0, 1)

	require.NoError(t, repo.Create(ctx, &domain.Link{ID: "1", ShortCode: "old1", ExpiresAt: &hourAgo, OwnerID: strPtr("alice")}))
	require.NoError(t, repo.Create(ctx, &domain.Link{ID: "2", ShortCode: "old2", ExpiresAt: &weekAgo}))
	require.NoError(t, repo.Create(ctx, &domain.Link{ID: "3", ShortCode: "live", ExpiresAt: &tomorrow}))

	n, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	remaining, err := repo.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "live", remaining[0].ShortCode)
}

func TestShortURL(t *testing.T) {
	s, _ := newTestLinkService(nil)
	assert.Equal(t, "https://sho.rt/abc1234", s.ShortURL("abc1234"))
}
