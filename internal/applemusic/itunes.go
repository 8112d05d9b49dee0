package applemusic

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"crosslink/internal/fetch"
	"crosslink/internal/logging"
	"crosslink/internal/matcher"
	"crosslink/internal/models"
)

const DefaultITunesURL = "https://itunes.apple.com"

// SearchProvider uses the public iTunes Search API. It has no identifier
// filters, so every match is fuzzy.
type SearchProvider struct {
	fetch      *fetch.Client
	storefront string
	baseURL    string
	logger     *slog.Logger
}

func NewSearchProvider(fc *fetch.Client, storefront string, opts ...Option) *SearchProvider {
	o := options{baseURL: DefaultITunesURL}
	for _, opt := range opts {
		opt(&o)
	}
	if storefront == "" {
		storefront = DefaultStorefront
	}
	return &SearchProvider{
		fetch:      fc,
		storefront: storefront,
		baseURL:    o.baseURL,
		logger:     logging.NewComponentLogger(o.logger, "applemusic.itunes"),
	}
}

func (p *SearchProvider) Platform() models.Platform { return models.PlatformAppleMusic }

type itunesResponse struct {
	ResultCount int          `json:"resultCount"`
	Results     []itunesItem `json:"results"`
}

type itunesItem struct {
	WrapperType       string `json:"wrapperType"`
	TrackID           int64  `json:"trackId"`
	CollectionID      int64  `json:"collectionId"`
	TrackName         string `json:"trackName"`
	ArtistName        string `json:"artistName"`
	CollectionName    string `json:"collectionName"`
	TrackTimeMillis   int    `json:"trackTimeMillis"`
	TrackCount        int    `json:"trackCount"`
	ReleaseDate       string `json:"releaseDate"`
	TrackViewURL      string `json:"trackViewUrl"`
	CollectionViewURL string `json:"collectionViewUrl"`
}

func (it itunesItem) track() models.TrackMetadata {
	return models.TrackMetadata{
		ID:          strconv.FormatInt(it.TrackID, 10),
		Name:        it.TrackName,
		Artists:     splitArtists(it.ArtistName),
		Album:       it.CollectionName,
		DurationMs:  it.TrackTimeMillis,
		ReleaseYear: parseYear(it.ReleaseDate),
	}
}

func (it itunesItem) album() models.AlbumMetadata {
	return models.AlbumMetadata{
		ID:          strconv.FormatInt(it.CollectionID, 10),
		Name:        it.CollectionName,
		Artists:     splitArtists(it.ArtistName),
		TotalTracks: it.TrackCount,
		ReleaseYear: parseYear(it.ReleaseDate),
	}
}

func (p *SearchProvider) SearchTrack(ctx context.Context, t models.TrackMetadata) models.Outcome {
	term := trackTerm(t)
	items, err := p.search(ctx, term, "song")
	if err != nil {
		p.logger.WarnContext(ctx, "itunes song search failed", logging.Error(err))
		return models.Degraded(SearchURL(p.storefront, term))
	}
	candidates := make([]models.TrackMetadata, len(items))
	for i, it := range items {
		candidates[i] = it.track()
	}
	if i, conf := matcher.BestTrack(t, candidates); i >= 0 && matcher.Accepted(conf) {
		return models.Matched(cleanURL(items[i].TrackViewURL), conf, matcher.TrackFields(candidates[i]))
	}
	return models.Fallback(SearchURL(p.storefront, term))
}

func (p *SearchProvider) SearchAlbum(ctx context.Context, a models.AlbumMetadata) models.Outcome {
	term := albumTerm(a)
	items, err := p.search(ctx, term, "album")
	if err != nil {
		p.logger.WarnContext(ctx, "itunes album search failed", logging.Error(err))
		return models.Degraded(SearchURL(p.storefront, term))
	}
	candidates := make([]models.AlbumMetadata, len(items))
	for i, it := range items {
		candidates[i] = it.album()
	}
	if i, conf := matcher.BestAlbum(a, candidates); i >= 0 && matcher.Accepted(conf) {
		return models.Matched(cleanURL(items[i].CollectionViewURL), conf, matcher.AlbumFields(candidates[i]))
	}
	return models.Fallback(SearchURL(p.storefront, term))
}

func (p *SearchProvider) LookupTrack(ctx context.Context, id string) (models.TrackMetadata, error) {
	items, err := p.lookup(ctx, id)
	if err != nil {
		return models.TrackMetadata{}, fmt.Errorf("song %s: %w", id, err)
	}
	for _, it := range items {
		if it.WrapperType == "track" {
			return it.track(), nil
		}
	}
	return models.TrackMetadata{}, fmt.Errorf("song %s: %w", id, ErrNotFound)
}

func (p *SearchProvider) LookupAlbum(ctx context.Context, id string) (models.AlbumMetadata, error) {
	items, err := p.lookup(ctx, id)
	if err != nil {
		return models.AlbumMetadata{}, fmt.Errorf("album %s: %w", id, err)
	}
	for _, it := range items {
		if it.WrapperType == "collection" {
			return it.album(), nil
		}
	}
	return models.AlbumMetadata{}, fmt.Errorf("album %s: %w", id, ErrNotFound)
}

func (p *SearchProvider) search(ctx context.Context, term, entity string) ([]itunesItem, error) {
	query := url.Values{
		"term":    {term},
		"media":   {"music"},
		"entity":  {entity},
		"limit":   {strconv.Itoa(searchLimit)},
		"country": {p.storefront},
	}
	var res itunesResponse
	if err := p.fetch.GetJSON(ctx, p.baseURL+"/search?"+query.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}

func (p *SearchProvider) lookup(ctx context.Context, id string) ([]itunesItem, error) {
	query := url.Values{"id": {id}, "country": {p.storefront}}
	var res itunesResponse
	if err := p.fetch.GetJSON(ctx, p.baseURL+"/lookup?"+query.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}

// cleanURL drops the affiliate "uo" parameter iTunes appends to links.
func cleanURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if !q.Has("uo") {
		return raw
	}
	q.Del("uo")
	u.RawQuery = q.Encode()
	return u.String()
}
