package youtube

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosslink/internal/fetch"
	"crosslink/internal/logging"
	"crosslink/internal/models"
)

var hello = models.TrackMetadata{Name: "Hello", Artists: []string{"Adele"}, DurationMs: 295000}

func newSearchProvider(t *testing.T, handler http.HandlerFunc) *SearchProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSearchProvider(fetch.New(), "test-key", WithBaseURL(srv.URL))
}

func TestSearchTrackPicksBestUpload(t *testing.T) {
	p := newSearchProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "video", q.Get("type"))
		assert.Equal(t, "Adele Hello", q.Get("q"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":{"videoId":"cover1"},"snippet":{"title":"Hello - Adele (Cover by Jane)","channelTitle":"Jane Music"}},
			{"id":{"videoId":"YQHsXMglC9A"},"snippet":{"title":"Adele - Hello (Official Music Video)","channelTitle":"AdeleVEVO"}},
			{"id":{"channelId":"UC123"},"snippet":{"title":"Adele","channelTitle":"Adele"}}
		]}`))
	})

	got := p.SearchTrack(context.Background(), hello)
	require.True(t, got.IsMatched())
	assert.Equal(t, "https://music.youtube.com/watch?v=YQHsXMglC9A", got.URL())
	assert.InDelta(t, 1.0, got.Confidence(), 1e-9)
	assert.Equal(t, "AdeleVEVO", got.MatchedFields()["channel"])
}

func TestSearchTrackFallsBackWithoutConfidentUpload(t *testing.T) {
	p := newSearchProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"id":{"videoId":"k1"},"snippet":{"title":"Hello Karaoke Version","channelTitle":"Sing King"}}]}`))
	})

	got := p.SearchTrack(context.Background(), hello)
	require.True(t, got.IsFallback())
	assert.False(t, got.IsDegraded())
	assert.Equal(t, "https://music.youtube.com/search?q=Adele+Hello", got.URL())
}

func TestSearchErrorDoesNotLogAPIKey(t *testing.T) {
	var logs bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Output: &logs})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	p := NewSearchProvider(fetch.New(), "SECRET-KEY-123", WithBaseURL(srv.URL), WithLogger(logger))

	p.SearchTrack(context.Background(), hello)
	assert.Contains(t, logs.String(), "youtube search failed")
	assert.NotContains(t, logs.String(), "SECRET-KEY-123")
}

func TestSearchErrorsDegradeToFallback(t *testing.T) {
	p := newSearchProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	got := p.SearchTrack(context.Background(), hello)
	assert.True(t, got.IsFallback())
	assert.True(t, got.IsDegraded())
	album := p.SearchAlbum(context.Background(), models.AlbumMetadata{Name: "25", Artists: []string{"Adele"}})
	assert.True(t, album.IsFallback())
	assert.True(t, album.IsDegraded())
	assert.Equal(t, "https://music.youtube.com/search?q=Adele+25", album.URL())
}

func TestSearchAlbumUsesPlaylists(t *testing.T) {
	p := newSearchProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "playlist", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(`{"items":[{"id":{"playlistId":"OLAK5uy_abc"},"snippet":{"title":"25","channelTitle":"Adele - Topic"}}]}`))
	})

	got := p.SearchAlbum(context.Background(), models.AlbumMetadata{Name: "25", Artists: []string{"Adele"}})
	require.True(t, got.IsMatched())
	assert.Equal(t, "https://music.youtube.com/playlist?list=OLAK5uy_abc", got.URL())
}

func TestFallbackProvider(t *testing.T) {
	var p FallbackProvider
	assert.Equal(t, models.PlatformYouTube, p.Platform())
	got := p.SearchTrack(context.Background(), hello)
	assert.True(t, got.IsFallback())
	assert.Equal(t, "https://music.youtube.com/search?q=Adele+Hello", got.URL())
	assert.Zero(t, got.Confidence())
}

type stubFetcher struct {
	video Video
	err   error
}

func (s stubFetcher) FetchVideo(context.Context, string) (Video, error) { return s.video, s.err }

func TestVideoLookup(t *testing.T) {
	l := NewVideoLookup(stubFetcher{video: Video{
		ID:       "YQHsXMglC9A",
		Title:    "Adele - Hello (Official Music Video)",
		Author:   "AdeleVEVO",
		Duration: 367000,
	}})

	got, err := l.LookupTrack(context.Background(), "YQHsXMglC9A")
	require.NoError(t, err)
	assert.Equal(t, models.TrackMetadata{ID: "YQHsXMglC9A", Name: "Hello", Artists: []string{"Adele"}, DurationMs: 367000}, got)

	_, err = l.LookupAlbum(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestVideoLookupPropagatesErrors(t *testing.T) {
	boom := errors.New("video unavailable")
	_, err := NewVideoLookup(stubFetcher{err: boom}).LookupTrack(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}
