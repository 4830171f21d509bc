package domain

import (
	"regexp"
	"strings"
	"time"
)

var originalURLPattern = regexp.MustCompile(`^https?://.+`)

// reservedAliases shadow the server's own top-level routes, so a link using
// one of them could never be followed.
var reservedAliases = []string{"api", "auth", "healthz", "metrics"}

// Link represents a shortened URL
type Link struct {
	ID          string     `json:"id"`
	OriginalURL string     `json:"original_url"`
	ShortCode   string     `json:"short_code"`
	CustomAlias bool       `json:"custom_alias"`
	OwnerID     *string    `json:"owner_id,omitempty"` // nil for anonymous links
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"` // nil never expires
	IsActive    bool       `json:"is_active"`
	Tags        []string   `json:"tags"`
	Description string     `json:"description"`
	Clicks      []Click    `json:"clicks,omitempty"` // nil in summary projections
	ClickCount  int64      `json:"click_count"`
}

// LinkPatch carries the owner-mutable fields. Nil fields are left untouched.
type LinkPatch struct {
	IsActive    *bool
	Tags        *[]string
	Description *string
}

// ValidOriginalURL reports whether s is an absolute http(s) URL.
func ValidOriginalURL(s string) bool {
	return originalURLPattern.MatchString(s)
}

// ValidAlias reports whether s can be served as a custom short code: it must
// be a single path segment and must not collide with a reserved route.
func ValidAlias(s string) bool {
	if s == "" || strings.ContainsAny(s, "/?# \t\n") {
		return false
	}
	for _, r := range reservedAliases {
		if strings.EqualFold(s, r) {
			return false
		}
	}
	return true
}

// IsExpiredAt reports whether the link has an expiry that lies before now.
func (l *Link) IsExpiredAt(now time.Time) bool {
	if l.ExpiresAt == nil {
		return false
	}
	return now.After(*l.ExpiresAt)
}

// IsExpired is IsExpiredAt evaluated against the wall clock.
func (l *Link) IsExpired() bool {
	return l.IsExpiredAt(time.Now())
}

// OwnedBy reports whether requesterID identifies the owner of the link.
// Ownerless links are never owned by anyone.
func (l *Link) OwnedBy(requesterID *string) bool {
	if l.OwnerID == nil || requesterID == nil {
		return false
	}
	return *l.OwnerID == *requesterID
}

// VisibleTo reports whether requesterID may read the link's analytics.
func (l *Link) VisibleTo(requesterID *string) bool {
	return l.OwnerID == nil || l.OwnedBy(requesterID)
}

// Apply copies the provided patch fields onto the link.
func (l *Link) Apply(p LinkPatch) {
	if p.IsActive != nil {
		l.IsActive = *p.IsActive
	}
	if p.Tags != nil {
		l.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
}

// Summary returns a copy of the link without its click history.
func (l Link) Summary() Link {
	l.Clicks = nil
	return l
}
