// Package models defines the domain types shared between the service and
// storage layers.
package models

import "time"

// Identity is the authenticated caller as reported by the external identity
// provider. The core never issues or verifies identities itself.
type Identity struct {
	// UserID uniquely identifies the owner of shortened URLs.
	UserID string
	// Tier names the quota tier the user belongs to (e.g. "free").
	Tier string
}

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the short code associated with the original URL.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// OwnerID references the user identity that created the URL.
	OwnerID string
	// Clicks tracks the number of times the shortened URL has been visited.
	Clicks int64
	// ClickEvents holds the recorded visits in insertion order. Only populated
	// by the stats query; list queries leave it nil.
	ClickEvents []ClickEvent
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
}

// ClickEvent is one recorded visit to a short code.
type ClickEvent struct {
	OccurredAt time.Time
	IPAddress  string
	UserAgent  string
	Referrer   string
}

// DayClicks is the number of clicks an owner received on a single day.
type DayClicks struct {
	Day    time.Time
	Clicks int64
}

// OwnerStats aggregates an owner's links for the dashboard surface.
type OwnerStats struct {
	TotalURLs   int64
	TotalClicks int64
	ClicksByDay []DayClicks
	TopURLs     []URL
}
