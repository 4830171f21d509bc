package domain

import "time"

// DirectReferrer is recorded when a visit carries no referrer.
const DirectReferrer = "Direct"

// Click represents one visit to a short link
type Click struct {
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer"`
}

// ClickInput is the client data captured on redirect.
type ClickInput struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

// NewClick stamps a click at now and normalizes an empty referrer.
func NewClick(in ClickInput, now time.Time) Click {
	ref := in.Referrer
	if ref == "" {
		ref = DirectReferrer
	}
	return Click{
		Timestamp: now,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Referrer:  ref,
	}
}
