package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	owner := "user@example.com"

	src := memory.NewMemoryRepository()
	link := &domain.Link{
		ID:          "id-1",
		OriginalURL: "https://example.com",
		ShortCode:   "promo",
		CustomAlias: true,
		OwnerID:     &owner,
		CreatedAt:   created,
		IsActive:    true,
		Tags:        []string{"a"},
	}
	require.NoError(t, src.Create(ctx, link))
	for _, ref := range []string{"https://a.example", domain.DirectReferrer} {
		click := domain.NewClick(domain.ClickInput{Referrer: ref}, created.Add(time.Hour))
		require.NoError(t, src.RecordClick(ctx, link, &click))
	}

	var buf bytes.Buffer
	require.NoError(t, exportLinks(ctx, src, &buf))
	assert.Contains(t, buf.String(), `"short_code": "promo"`)

	dst := memory.NewMemoryRepository()
	n, err := importLinks(ctx, dst, bytes.NewReader(buf.Bytes()), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := dst.GetByShortCode(ctx, "promo")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ClickCount)
	assert.Equal(t, &owner, got.OwnerID)
	assert.True(t, got.CustomAlias)

	clicks, err := dst.ListClicks(ctx, "id-1")
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	assert.Equal(t, "https://a.example", clicks[0].Referrer)

	// a second import skips what already exists
	n, err = importLinks(ctx, dst, bytes.NewReader(buf.Bytes()), quietLogger())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, exportLinks(context.Background(), memory.NewMemoryRepository(), &buf))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	_, err := importLinks(context.Background(), memory.NewMemoryRepository(), strings.NewReader("{"), quietLogger())
	assert.ErrorContains(t, err, "decode failed")
}
