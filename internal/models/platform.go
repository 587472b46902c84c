package models

import "fmt"

// Platform identifies an upstream content source.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformNews     Platform = "news"
	PlatformLinkedIn Platform = "linkedin"
	PlatformReddit   Platform = "reddit"
	PlatformRSS      Platform = "rss"
)

// AllPlatforms lists every platform the pipeline knows how to ingest from.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformTwitter,
		PlatformNews,
		PlatformLinkedIn,
		PlatformReddit,
		PlatformRSS,
	}
}

// ParsePlatform converts a raw string into a Platform.
func ParsePlatform(raw string) (Platform, error) {
	switch Platform(raw) {
	case PlatformTwitter, PlatformNews, PlatformLinkedIn, PlatformReddit, PlatformRSS:
		return Platform(raw), nil
	default:
		return "", fmt.Errorf("unknown platform: %q", raw)
	}
}

// IsSocial reports whether the platform carries user-authored social posts
// rather than editorial content. Social platforms require an explicit business
// context signal to pass the industry-relevance filter.
func (p Platform) IsSocial() bool {
	switch p {
	case PlatformTwitter, PlatformLinkedIn, PlatformReddit:
		return true
	}
	return false
}

// IsNewsSource reports whether the platform is a general news source.
func (p Platform) IsNewsSource() bool {
	return p == PlatformNews || p == PlatformRSS
}
