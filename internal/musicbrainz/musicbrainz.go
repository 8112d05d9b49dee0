// Package musicbrainz fills in missing ISRC and UPC identifiers from the open
// MusicBrainz database, caching both hits and misses.
package musicbrainz

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"crosslink/internal/fetch"
	"crosslink/internal/kvstore"
	"crosslink/internal/logging"
)

const (
	DefaultBaseURL = "https://musicbrainz.org/ws/2"
	DefaultTTL     = 30 * 24 * time.Hour

	minScore      = 80
	searchLimit   = 5
	detailLookups = 3
)

// Client looks up identifiers by artist and title.
type Client struct {
	fetch   *fetch.Client
	store   kvstore.Store
	baseURL string
	ttl     time.Duration
	local   *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithLocalLimiter replaces the per-process 1 req/s limiter.
func WithLocalLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.local = l }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a Client. The shared distributed limit is expected on the fetch
// client's transport; the local limiter smooths calls within this process.
func New(fc *fetch.Client, store kvstore.Store, opts ...Option) *Client {
	c := &Client{
		fetch:   fc,
		store:   store,
		baseURL: DefaultBaseURL,
		ttl:     DefaultTTL,
		local:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "musicbrainz")
	return c
}

type searchCandidate struct {
	ID      string
	Score   int
	IsAlbum bool
}

// LookupTrackISRC returns the ISRC of the best recording for artist/title.
func (c *Client) LookupTrackISRC(ctx context.Context, artist, track string) (string, bool) {
	return c.lookup(ctx, "isrc", artist, track, c.searchRecordings, c.recordingISRC)
}

// LookupAlbumUPC returns the barcode of the best release for artist/album.
func (c *Client) LookupAlbumUPC(ctx context.Context, artist, album string) (string, bool) {
	return c.lookup(ctx, "upc", artist, album, c.searchReleases, c.releaseBarcode)
}

func (c *Client) lookup(
	ctx context.Context,
	kind, artist, title string,
	search func(context.Context, string, string) ([]searchCandidate, error),
	detail func(context.Context, string) (string, error),
) (string, bool) {
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if artist == "" || title == "" {
		return "", false
	}
	key := CacheKey(kind, artist, title)
	logger := c.logger.With(slog.String("kind", kind), slog.String("artist", artist), slog.String("title", title))

	if e, ok := c.cached(ctx, key); ok {
		logger.Debug("enrichment cache hit", slog.String("status", e.Status))
		return e.Value, e.Status == statusFound
	}

	candidates, err := search(ctx, artist, title)
	if err != nil {
		logger.Warn("musicbrainz search failed", logging.Error(err))
		return "", false
	}

	ranked := rank(candidates)
	failed := false
	for i := 0; i < len(ranked) && i < detailLookups; i++ {
		value, err := detail(ctx, ranked[i].ID)
		if err != nil {
			logger.Warn("musicbrainz detail lookup failed", slog.String("id", ranked[i].ID), logging.Error(err))
			failed = true
			continue
		}
		if value != "" {
			c.remember(ctx, key, entry{Status: statusFound, Value: value})
			return value, true
		}
	}
	if !failed {
		c.remember(ctx, key, entry{Status: statusAbsent})
	}
	return "", false
}

// rank keeps confident candidates, studio albums first, then by score.
func rank(candidates []searchCandidate) []searchCandidate {
	out := make([]searchCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Score >= minScore && cand.ID != "" {
			out = append(out, cand)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsAlbum != out[j].IsAlbum {
			return out[i].IsAlbum
		}
		return out[i].Score > out[j].Score
	})
	return out
}

type releaseGroup struct {
	PrimaryType string `json:"primary-type"`
}

type recordingSearchResponse struct {
	Recordings []struct {
		ID       string `json:"id"`
		Score    int    `json:"score"`
		Releases []struct {
			ReleaseGroup releaseGroup `json:"release-group"`
		} `json:"releases"`
	} `json:"recordings"`
}

type releaseSearchResponse struct {
	Releases []struct {
		ID           string       `json:"id"`
		Score        int          `json:"score"`
		ReleaseGroup releaseGroup `json:"release-group"`
	} `json:"releases"`
}

func (c *Client) searchRecordings(ctx context.Context, artist, title string) ([]searchCandidate, error) {
	query := fmt.Sprintf(`artist:"%s" AND recording:"%s"`, EscapeLucene(artist), EscapeLucene(title))
	var res recordingSearchResponse
	if err := c.get(ctx, "/recording", url.Values{"query": {query}, "limit": {fmt.Sprint(searchLimit)}}, &res); err != nil {
		return nil, err
	}
	out := make([]searchCandidate, 0, len(res.Recordings))
	for _, rec := range res.Recordings {
		cand := searchCandidate{ID: rec.ID, Score: rec.Score}
		for _, rel := range rec.Releases {
			if strings.EqualFold(rel.ReleaseGroup.PrimaryType, "album") {
				cand.IsAlbum = true
				break
			}
		}
		out = append(out, cand)
	}
	return out, nil
}

func (c *Client) searchReleases(ctx context.Context, artist, title string) ([]searchCandidate, error) {
	query := fmt.Sprintf(`artist:"%s" AND release:"%s"`, EscapeLucene(artist), EscapeLucene(title))
	var res releaseSearchResponse
	if err := c.get(ctx, "/release", url.Values{"query": {query}, "limit": {fmt.Sprint(searchLimit)}}, &res); err != nil {
		return nil, err
	}
	out := make([]searchCandidate, 0, len(res.Releases))
	for _, rel := range res.Releases {
		out = append(out, searchCandidate{
			ID:      rel.ID,
			Score:   rel.Score,
			IsAlbum: strings.EqualFold(rel.ReleaseGroup.PrimaryType, "album"),
		})
	}
	return out, nil
}

func (c *Client) recordingISRC(ctx context.Context, id string) (string, error) {
	var res struct {
		ISRCs []string `json:"isrcs"`
	}
	if err := c.get(ctx, "/recording/"+url.PathEscape(id), url.Values{"inc": {"isrcs"}}, &res); err != nil {
		return "", err
	}
	for _, isrc := range res.ISRCs {
		if isrc = strings.TrimSpace(isrc); isrc != "" {
			return strings.ToUpper(isrc), nil
		}
	}
	return "", nil
}

func (c *Client) releaseBarcode(ctx context.Context, id string) (string, error) {
	var res struct {
		Barcode string `json:"barcode"`
	}
	if err := c.get(ctx, "/release/"+url.PathEscape(id), nil, &res); err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Barcode), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	if c.local != nil {
		if err := c.local.Wait(ctx); err != nil {
			return err
		}
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("fmt", "json")
	return c.fetch.GetJSON(ctx, c.baseURL+path+"?"+query.Encode(), nil, dst)
}
