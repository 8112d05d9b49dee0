// Package spotify wraps the Spotify Web API as the source-platform client:
// canonical metadata by id and field-filtered catalog search.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"crosslink/internal/logging"
	"crosslink/internal/models"
)

const defaultTimeout = 10 * time.Second

// ErrNotFound is returned when an id does not exist in the catalog.
var ErrNotFound = errors.New("spotify: not found")

type Client struct {
	api    *spotifyapi.Client
	logger *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New wraps an already configured API client.
func New(api *spotifyapi.Client, opts ...Option) *Client {
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "spotify")
	return c
}

// NewWithCredentials authenticates with the client-credentials flow. API
// calls go through base (typically a ratelimit.Transport); token requests
// do not.
func NewWithCredentials(ctx context.Context, clientID, clientSecret string, base http.RoundTripper, opts ...Option) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{
		Timeout: defaultTimeout,
		Transport: &oauth2.Transport{
			Source: cfg.TokenSource(ctx),
			Base:   base,
		},
	}
	return New(spotifyapi.New(httpClient), opts...)
}

func (c *Client) GetTrack(ctx context.Context, id string) (models.TrackMetadata, error) {
	ft, err := c.api.GetTrack(ctx, spotifyapi.ID(id))
	if err != nil {
		return models.TrackMetadata{}, fmt.Errorf("get track %s: %w", id, classify(err))
	}
	return transformTrack(*ft), nil
}

func (c *Client) GetAlbum(ctx context.Context, id string) (models.AlbumMetadata, error) {
	fa, err := c.api.GetAlbum(ctx, spotifyapi.ID(id))
	if err != nil {
		return models.AlbumMetadata{}, fmt.Errorf("get album %s: %w", id, classify(err))
	}
	album := transformAlbum(fa.SimpleAlbum)
	album.UPC = fa.ExternalIDs["upc"]
	album.TotalTracks = int(fa.Tracks.Total)
	if album.TotalTracks == 0 {
		album.TotalTracks = len(fa.Tracks.Tracks)
	}
	return album, nil
}

// SearchTracks runs a free-text track search.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackMetadata, error) {
	res, err := c.api.Search(ctx, query, spotifyapi.SearchTypeTrack, spotifyapi.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("search tracks: %w", classify(err))
	}
	if res.Tracks == nil {
		return nil, nil
	}
	out := make([]models.TrackMetadata, 0, len(res.Tracks.Tracks))
	for _, ft := range res.Tracks.Tracks {
		out = append(out, transformTrack(ft))
	}
	c.logger.Debug("track search", slog.String("query", query), slog.Int("results", len(out)))
	return out, nil
}

func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) ([]models.AlbumMetadata, error) {
	res, err := c.api.Search(ctx, query, spotifyapi.SearchTypeAlbum, spotifyapi.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("search albums: %w", classify(err))
	}
	if res.Albums == nil {
		return nil, nil
	}
	out := make([]models.AlbumMetadata, 0, len(res.Albums.Albums))
	for _, sa := range res.Albums.Albums {
		out = append(out, transformAlbum(sa))
	}
	c.logger.Debug("album search", slog.String("query", query), slog.Int("results", len(out)))
	return out, nil
}

// PreciseSearchTrack searches with track: and artist: field filters.
func (c *Client) PreciseSearchTrack(ctx context.Context, title, artist string, limit int) ([]models.TrackMetadata, error) {
	return c.SearchTracks(ctx, fieldQuery("track", title, artist), limit)
}

// PreciseSearchAlbum searches with album: and artist: field filters.
func (c *Client) PreciseSearchAlbum(ctx context.Context, name, artist string, limit int) ([]models.AlbumMetadata, error) {
	return c.SearchAlbums(ctx, fieldQuery("album", name, artist), limit)
}

func fieldQuery(field, name, artist string) string {
	q := field + ":" + quote(name)
	if artist = strings.TrimSpace(artist); artist != "" {
		q += " artist:" + quote(artist)
	}
	return q
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(s), `"`, "") + `"`
}

func classify(err error) error {
	var apiErr spotifyapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	}
	return err
}

func transformTrack(st spotifyapi.FullTrack) models.TrackMetadata {
	return models.TrackMetadata{
		ID:          string(st.ID),
		ISRC:        strings.ToUpper(st.ExternalIDs["isrc"]),
		Name:        st.Name,
		Artists:     artistNames(st.Artists),
		Album:       st.Album.Name,
		DurationMs:  int(st.Duration),
		ReleaseYear: parseYear(st.Album.ReleaseDate),
	}
}

func transformAlbum(sa spotifyapi.SimpleAlbum) models.AlbumMetadata {
	return models.AlbumMetadata{
		ID:          string(sa.ID),
		Name:        sa.Name,
		Artists:     artistNames(sa.Artists),
		ReleaseYear: parseYear(sa.ReleaseDate),
	}
}

func artistNames(artists []spotifyapi.SimpleArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// parseYear reads the year from "2015", "2015-11" or "2015-11-20".
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
