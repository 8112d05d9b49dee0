package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	ytdl "github.com/kkdai/youtube/v2"

	"crosslink/internal/models"
)

var ErrUnsupported = errors.New("youtube: albums are not addressable")

// Video is the subset of watch-page metadata the resolver needs.
type Video struct {
	ID       string
	Title    string
	Author   string
	Duration int // milliseconds
}

// VideoFetcher abstracts the watch-page client so tests can stub it.
type VideoFetcher interface {
	FetchVideo(ctx context.Context, id string) (Video, error)
}

// WatchPageFetcher reads video metadata without an API key.
type WatchPageFetcher struct {
	client ytdl.Client
}

func NewWatchPageFetcher(httpClient *http.Client) *WatchPageFetcher {
	return &WatchPageFetcher{client: ytdl.Client{HTTPClient: httpClient}}
}

func (f *WatchPageFetcher) FetchVideo(ctx context.Context, id string) (Video, error) {
	v, err := f.client.GetVideoContext(ctx, id)
	if err != nil {
		return Video{}, fmt.Errorf("youtube video %s: %w", id, err)
	}
	return Video{
		ID:       v.ID,
		Title:    v.Title,
		Author:   v.Author,
		Duration: int(v.Duration.Milliseconds()),
	}, nil
}

// VideoLookup turns a video into track metadata through title heuristics.
type VideoLookup struct {
	fetcher VideoFetcher
}

func NewVideoLookup(fetcher VideoFetcher) *VideoLookup {
	return &VideoLookup{fetcher: fetcher}
}

func (l *VideoLookup) LookupTrack(ctx context.Context, id string) (models.TrackMetadata, error) {
	v, err := l.fetcher.FetchVideo(ctx, id)
	if err != nil {
		return models.TrackMetadata{}, err
	}
	artist, title := ParseTitle(v.Title, v.Author)
	if title == "" {
		return models.TrackMetadata{}, fmt.Errorf("youtube video %s: empty title", id)
	}
	t := models.TrackMetadata{ID: v.ID, Name: title, DurationMs: v.Duration}
	if artist != "" {
		t.Artists = []string{artist}
	}
	if t.ID == "" {
		t.ID = id
	}
	return t, nil
}

func (l *VideoLookup) LookupAlbum(context.Context, string) (models.AlbumMetadata, error) {
	return models.AlbumMetadata{}, ErrUnsupported
}
