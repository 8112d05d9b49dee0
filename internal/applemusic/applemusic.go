// Package applemusic finds tracks and albums on Apple Music, either through
// the authenticated catalog API or the public iTunes Search API.
package applemusic

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"crosslink/internal/models"
)

const (
	DefaultStorefront = "us"
	searchLimit       = 10
)

type options struct {
	baseURL string
	logger  *slog.Logger
}

type Option func(*options)

// WithBaseURL points the provider at a different API host (tests).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// SearchURL is the generic Apple Music search page for term.
func SearchURL(storefront, term string) string {
	if storefront == "" {
		storefront = DefaultStorefront
	}
	return "https://music.apple.com/" + storefront + "/search?term=" + url.QueryEscape(strings.TrimSpace(term))
}

func trackTerm(t models.TrackMetadata) string {
	return strings.TrimSpace(t.Name + " " + t.PrimaryArtist())
}

func albumTerm(a models.AlbumMetadata) string {
	return strings.TrimSpace(a.Name + " " + a.PrimaryArtist())
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func splitArtists(name string) []string {
	if name == "" {
		return nil
	}
	return []string{name}
}
