// Package youtube matches tracks and albums against YouTube. With an API key
// it searches the Data API and scores uploads heuristically; without one it
// only links to a YouTube Music search.
package youtube

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"crosslink/internal/fetch"
	"crosslink/internal/logging"
	"crosslink/internal/matcher"
	"crosslink/internal/models"
)

const (
	DefaultAPIURL = "https://www.googleapis.com/youtube/v3"
	searchResults = 10
)

// SearchURL is the generic YouTube Music search page for term.
func SearchURL(term string) string {
	return "https://music.youtube.com/search?q=" + url.QueryEscape(strings.TrimSpace(term))
}

func WatchURL(id string) string {
	return "https://music.youtube.com/watch?v=" + url.QueryEscape(id)
}

func PlaylistURL(id string) string {
	return "https://music.youtube.com/playlist?list=" + url.QueryEscape(id)
}

func trackTerm(t models.TrackMetadata) string {
	return strings.TrimSpace(t.PrimaryArtist() + " " + t.Name)
}

func albumTerm(a models.AlbumMetadata) string {
	return strings.TrimSpace(a.PrimaryArtist() + " " + a.Name)
}

// FallbackProvider never searches; it always returns the search page.
type FallbackProvider struct{}

func (FallbackProvider) Platform() models.Platform { return models.PlatformYouTube }

func (FallbackProvider) SearchTrack(_ context.Context, t models.TrackMetadata) models.Outcome {
	return models.Fallback(SearchURL(trackTerm(t)))
}

func (FallbackProvider) SearchAlbum(_ context.Context, a models.AlbumMetadata) models.Outcome {
	return models.Fallback(SearchURL(albumTerm(a)))
}

type SearchProvider struct {
	fetch   *fetch.Client
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

type Option func(*SearchProvider)

func WithBaseURL(u string) Option {
	return func(p *SearchProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *SearchProvider) { p.logger = logger }
}

func NewSearchProvider(fc *fetch.Client, apiKey string, opts ...Option) *SearchProvider {
	p := &SearchProvider{fetch: fc, apiKey: apiKey, baseURL: DefaultAPIURL}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "youtube")
	return p
}

func (p *SearchProvider) Platform() models.Platform { return models.PlatformYouTube }

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID    string `json:"videoId"`
			PlaylistID string `json:"playlistId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

func (p *SearchProvider) SearchTrack(ctx context.Context, t models.TrackMetadata) models.Outcome {
	term := trackTerm(t)
	res, err := p.search(ctx, term, "video")
	if err != nil {
		p.logger.WarnContext(ctx, "youtube search failed", logging.Error(err))
		return models.Degraded(SearchURL(term))
	}

	bestID, bestScore := "", 0.0
	var bestUpload Upload
	for _, item := range res.Items {
		if item.ID.VideoID == "" {
			continue
		}
		u := Upload{Title: item.Snippet.Title, Channel: item.Snippet.ChannelTitle}
		if score := ScoreUpload(t.Name, t.PrimaryArtist(), u); score > bestScore {
			bestID, bestScore, bestUpload = item.ID.VideoID, score, u
		}
	}
	if bestID != "" && matcher.Accepted(bestScore) {
		return models.Matched(WatchURL(bestID), bestScore, map[string]string{
			"title":   bestUpload.Title,
			"channel": bestUpload.Channel,
		})
	}
	return models.Fallback(SearchURL(term))
}

func (p *SearchProvider) SearchAlbum(ctx context.Context, a models.AlbumMetadata) models.Outcome {
	term := albumTerm(a)
	res, err := p.search(ctx, term, "playlist")
	if err != nil {
		p.logger.WarnContext(ctx, "youtube playlist search failed", logging.Error(err))
		return models.Degraded(SearchURL(term))
	}

	bestID, bestScore := "", 0.0
	var bestUpload Upload
	for _, item := range res.Items {
		if item.ID.PlaylistID == "" {
			continue
		}
		u := Upload{Title: item.Snippet.Title, Channel: item.Snippet.ChannelTitle}
		if score := ScoreUpload(a.Name, a.PrimaryArtist(), u); score > bestScore {
			bestID, bestScore, bestUpload = item.ID.PlaylistID, score, u
		}
	}
	if bestID != "" && matcher.Accepted(bestScore) {
		return models.Matched(PlaylistURL(bestID), bestScore, map[string]string{
			"title":   bestUpload.Title,
			"channel": bestUpload.Channel,
		})
	}
	return models.Fallback(SearchURL(term))
}

func (p *SearchProvider) search(ctx context.Context, term, kind string) (searchResponse, error) {
	query := url.Values{
		"part":       {"snippet"},
		"type":       {kind},
		"maxResults": {strconv.Itoa(searchResults)},
		"q":          {term},
		"key":        {p.apiKey},
	}
	var res searchResponse
	err := p.fetch.GetJSON(ctx, p.baseURL+"/search?"+query.Encode(), nil, &res)
	return res, err
}
