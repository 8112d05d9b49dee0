package applemusic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"crosslink/internal/fetch"
	"crosslink/internal/logging"
	"crosslink/internal/matcher"
	"crosslink/internal/models"
)

const DefaultCatalogURL = "https://api.music.apple.com/v1"

var ErrNotFound = errors.New("applemusic: not found")

// Signer supplies developer tokens.
type Signer interface {
	Token() (string, error)
}

// CatalogProvider uses the Apple Music catalog API, which supports exact
// ISRC and UPC lookups.
type CatalogProvider struct {
	fetch      *fetch.Client
	signer     Signer
	storefront string
	baseURL    string
	logger     *slog.Logger
}

func NewCatalogProvider(fc *fetch.Client, signer Signer, storefront string, opts ...Option) *CatalogProvider {
	o := options{baseURL: DefaultCatalogURL}
	for _, opt := range opts {
		opt(&o)
	}
	if storefront == "" {
		storefront = DefaultStorefront
	}
	return &CatalogProvider{
		fetch:      fc,
		signer:     signer,
		storefront: storefront,
		baseURL:    o.baseURL,
		logger:     logging.NewComponentLogger(o.logger, "applemusic.catalog"),
	}
}

func (p *CatalogProvider) Platform() models.Platform { return models.PlatformAppleMusic }

type songAttributes struct {
	Name             string `json:"name"`
	ArtistName       string `json:"artistName"`
	AlbumName        string `json:"albumName"`
	DurationInMillis int    `json:"durationInMillis"`
	ReleaseDate      string `json:"releaseDate"`
	ISRC             string `json:"isrc"`
	URL              string `json:"url"`
}

type albumAttributes struct {
	Name        string `json:"name"`
	ArtistName  string `json:"artistName"`
	TrackCount  int    `json:"trackCount"`
	ReleaseDate string `json:"releaseDate"`
	UPC         string `json:"upc"`
	URL         string `json:"url"`
}

type resource[A any] struct {
	ID         string `json:"id"`
	Attributes A      `json:"attributes"`
}

type dataResponse[A any] struct {
	Data []resource[A] `json:"data"`
}

func (a songAttributes) link() string  { return a.URL }
func (a albumAttributes) link() string { return a.URL }

// firstURL is the link of the first entry that has one.
func firstURL[A interface{ link() string }](data []resource[A]) string {
	for _, r := range data {
		if u := r.Attributes.link(); u != "" {
			return u
		}
	}
	return ""
}

type searchResponse struct {
	Results struct {
		Songs  dataResponse[songAttributes]  `json:"songs"`
		Albums dataResponse[albumAttributes] `json:"albums"`
	} `json:"results"`
}

func songToTrack(r resource[songAttributes]) models.TrackMetadata {
	a := r.Attributes
	return models.TrackMetadata{
		ID:          r.ID,
		ISRC:        strings.ToUpper(a.ISRC),
		Name:        a.Name,
		Artists:     splitArtists(a.ArtistName),
		Album:       a.AlbumName,
		DurationMs:  a.DurationInMillis,
		ReleaseYear: parseYear(a.ReleaseDate),
	}
}

func albumToMetadata(r resource[albumAttributes]) models.AlbumMetadata {
	a := r.Attributes
	return models.AlbumMetadata{
		ID:          r.ID,
		UPC:         a.UPC,
		Name:        a.Name,
		Artists:     splitArtists(a.ArtistName),
		TotalTracks: a.TrackCount,
		ReleaseYear: parseYear(a.ReleaseDate),
	}
}

func (p *CatalogProvider) SearchTrack(ctx context.Context, t models.TrackMetadata) models.Outcome {
	term := trackTerm(t)

	degraded := false
	if t.ISRC != "" {
		var res dataResponse[songAttributes]
		err := p.get(ctx, "/songs", url.Values{"filter[isrc]": {t.ISRC}}, &res)
		if err != nil {
			p.logger.WarnContext(ctx, "apple isrc lookup failed", slog.String("isrc", t.ISRC), logging.Error(err))
			degraded = true
		} else if u := firstURL(res.Data); u != "" {
			return models.Matched(u, matcher.IdentifierConfidence, map[string]string{"isrc": t.ISRC})
		}
	}

	var res searchResponse
	query := url.Values{"term": {term}, "types": {"songs"}, "limit": {fmt.Sprint(searchLimit)}}
	if err := p.get(ctx, "/search", query, &res); err != nil {
		p.logger.WarnContext(ctx, "apple song search failed", logging.Error(err))
		return models.Degraded(SearchURL(p.storefront, term))
	}

	songs := res.Results.Songs.Data
	candidates := make([]models.TrackMetadata, len(songs))
	for i, s := range songs {
		candidates[i] = songToTrack(s)
	}
	if i, conf := matcher.BestTrack(t, candidates); i >= 0 && matcher.Accepted(conf) && songs[i].Attributes.URL != "" {
		return models.Matched(songs[i].Attributes.URL, conf, matcher.TrackFields(candidates[i]))
	}
	return p.fallback(term, degraded)
}

func (p *CatalogProvider) SearchAlbum(ctx context.Context, a models.AlbumMetadata) models.Outcome {
	term := albumTerm(a)

	degraded := false
	if a.UPC != "" {
		var res dataResponse[albumAttributes]
		err := p.get(ctx, "/albums", url.Values{"filter[upc]": {a.UPC}}, &res)
		if err != nil {
			p.logger.WarnContext(ctx, "apple upc lookup failed", slog.String("upc", a.UPC), logging.Error(err))
			degraded = true
		} else if u := firstURL(res.Data); u != "" {
			return models.Matched(u, matcher.IdentifierConfidence, map[string]string{"upc": a.UPC})
		}
	}

	var res searchResponse
	query := url.Values{"term": {term}, "types": {"albums"}, "limit": {fmt.Sprint(searchLimit)}}
	if err := p.get(ctx, "/search", query, &res); err != nil {
		p.logger.WarnContext(ctx, "apple album search failed", logging.Error(err))
		return models.Degraded(SearchURL(p.storefront, term))
	}

	albums := res.Results.Albums.Data
	candidates := make([]models.AlbumMetadata, len(albums))
	for i, r := range albums {
		candidates[i] = albumToMetadata(r)
	}
	if i, conf := matcher.BestAlbum(a, candidates); i >= 0 && matcher.Accepted(conf) && albums[i].Attributes.URL != "" {
		return models.Matched(albums[i].Attributes.URL, conf, matcher.AlbumFields(candidates[i]))
	}
	return p.fallback(term, degraded)
}

// fallback is the search page, marked degraded when an identifier lookup
// failed and the text search alone could not settle the match.
func (p *CatalogProvider) fallback(term string, degraded bool) models.Outcome {
	if degraded {
		return models.Degraded(SearchURL(p.storefront, term))
	}
	return models.Fallback(SearchURL(p.storefront, term))
}

// LookupTrack fetches a catalog song by id.
func (p *CatalogProvider) LookupTrack(ctx context.Context, id string) (models.TrackMetadata, error) {
	var res dataResponse[songAttributes]
	if err := p.get(ctx, "/songs/"+url.PathEscape(id), nil, &res); err != nil {
		return models.TrackMetadata{}, lookupError("song", id, err)
	}
	if len(res.Data) == 0 {
		return models.TrackMetadata{}, fmt.Errorf("song %s: %w", id, ErrNotFound)
	}
	return songToTrack(res.Data[0]), nil
}

// LookupAlbum fetches a catalog album by id.
func (p *CatalogProvider) LookupAlbum(ctx context.Context, id string) (models.AlbumMetadata, error) {
	var res dataResponse[albumAttributes]
	if err := p.get(ctx, "/albums/"+url.PathEscape(id), nil, &res); err != nil {
		return models.AlbumMetadata{}, lookupError("album", id, err)
	}
	if len(res.Data) == 0 {
		return models.AlbumMetadata{}, fmt.Errorf("album %s: %w", id, ErrNotFound)
	}
	return albumToMetadata(res.Data[0]), nil
}

func lookupError(kind, id string, err error) error {
	if fetch.IsNotFound(err) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}

func (p *CatalogProvider) get(ctx context.Context, path string, query url.Values, dst any) error {
	token, err := p.signer.Token()
	if err != nil {
		return err
	}
	u := p.baseURL + "/catalog/" + p.storefront + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	header := http.Header{"Authorization": {"Bearer " + token}}
	return p.fetch.GetJSON(ctx, u, header, dst)
}
