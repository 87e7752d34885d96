package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/purell"
)

const normalizeFlags = purell.FlagsUsuallySafeGreedy |
	purell.FlagRemoveFragment |
	purell.FlagSortQuery

// DiscussionLink is a discovered discussion-thread URL keyed by a stable hash.
type DiscussionLink struct {
	URL          string
	Hash         string
	DiscoveredAt time.Time
}

// NewDiscussionLink normalizes rawURL and derives its hash key.
func NewDiscussionLink(rawURL string, discoveredAt time.Time) (DiscussionLink, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return DiscussionLink{}, err
	}
	return DiscussionLink{
		URL:          normalized,
		Hash:         HashURL(normalized),
		DiscoveredAt: discoveredAt,
	}, nil
}

// NormalizeURL returns the canonical form of an absolute http(s) URL.
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", ErrInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", ErrInvalidURL
	}
	return purell.NormalizeURL(u, normalizeFlags), nil
}

// HashURL returns the 128-bit hex digest used as the link's dedup and file key.
// The input is expected to be normalized already.
func HashURL(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}
