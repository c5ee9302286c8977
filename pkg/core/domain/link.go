package domain

import "time"

// Link represents a shortened URL
type Link struct {
	ShortCode      string     `json:"shortCode"`
	OriginalURL    string     `json:"originalUrl"`
	CustomCode     bool       `json:"customCode"`
	Tags           []string   `json:"tags"`
	ExpiresAt      *time.Time `json:"expiryDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	TotalVisits    int64      `json:"totalVisits"`
	UniqueVisitors int64      `json:"uniqueVisitors"`
}

// Expired reports whether the link is past its expiry at now.
// A link without expiry never expires.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// HasTag reports whether tag is one of the link's tags (exact match).
func (l Link) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices or pointers with l.
func (l Link) Clone() Link {
	c := l
	if l.Tags != nil {
		c.Tags = append([]string(nil), l.Tags...)
	}
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	return c
}

// ShortenRequest carries the optional fields of a shorten call.
// Zero values mean: generate a code, never expire, no tags.
type ShortenRequest struct {
	OriginalURL string
	CustomCode  string
	ExpiresAt   *time.Time
	Tags        []string
}

// Archive is the portable form of the registry used by export and import.
type Archive struct {
	Links  []Link  `json:"links"`
	Visits []Visit `json:"visits"`
}
