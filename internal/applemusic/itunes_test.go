package applemusic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosslink/internal/fetch"
	"crosslink/internal/models"
)

func newSearchProvider(t *testing.T, handler http.HandlerFunc) *SearchProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSearchProvider(fetch.New(), "gb", WithBaseURL(srv.URL))
}

func TestITunesSearchTrack(t *testing.T) {
	p := newSearchProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "song", q.Get("entity"))
		assert.Equal(t, "gb", q.Get("country"))
		assert.Equal(t, "Hello Adele", q.Get("term"))
		_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"wrapperType":"track","trackId":1051394215,"trackName":"Hello","artistName":"Adele","collectionName":"25","trackTimeMillis":295502,"releaseDate":"2015-10-23T07:00:00Z","trackViewUrl":"https://music.apple.com/gb/album/hello/1051394208?i=1051394215&uo=4"}]}`))
	})

	got := p.SearchTrack(context.Background(), hello)
	require.True(t, got.IsMatched())
	assert.Equal(t, "https://music.apple.com/gb/album/hello/1051394208?i=1051394215", got.URL())
	assert.InDelta(t, 1.0, got.Confidence(), 1e-9)
}

func TestITunesIgnoresISRCAndFallsBack(t *testing.T) {
	p := newSearchProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"wrapperType":"track","trackId":1,"trackName":"Bonjour","artistName":"Autre","trackViewUrl":"https://music.apple.com/gb/song/1"}]}`))
	})

	got := p.SearchTrack(context.Background(), hello)
	require.True(t, got.IsFallback())
	assert.Equal(t, "https://music.apple.com/gb/search?term=Hello+Adele", got.URL())
}

func TestITunesSearchAlbum(t *testing.T) {
	p := newSearchProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "album", r.URL.Query().Get("entity"))
		_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"wrapperType":"collection","collectionId":1051394208,"collectionName":"25","artistName":"Adele","trackCount":11,"releaseDate":"2015-11-20T08:00:00Z","collectionViewUrl":"https://music.apple.com/gb/album/25/1051394208?uo=4"}]}`))
	})

	got := p.SearchAlbum(context.Background(), models.AlbumMetadata{Name: "25", Artists: []string{"Adele"}, TotalTracks: 11, ReleaseYear: 2015})
	require.True(t, got.IsMatched())
	assert.Equal(t, "https://music.apple.com/gb/album/25/1051394208", got.URL())
}

func TestITunesLookup(t *testing.T) {
	p := newSearchProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lookup", r.URL.Path)
		switch r.URL.Query().Get("id") {
		case "1051394215":
			_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"wrapperType":"track","trackId":1051394215,"trackName":"Hello","artistName":"Adele","collectionName":"25","trackTimeMillis":295502}]}`))
		case "1051394208":
			_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"wrapperType":"collection","collectionId":1051394208,"collectionName":"25","artistName":"Adele","trackCount":11}]}`))
		default:
			_, _ = w.Write([]byte(`{"resultCount":0,"results":[]}`))
		}
	})
	ctx := context.Background()

	track, err := p.LookupTrack(ctx, "1051394215")
	require.NoError(t, err)
	assert.Equal(t, "Hello", track.Name)
	assert.Equal(t, "1051394215", track.ID)
	assert.Equal(t, []string{"Adele"}, track.Artists)

	album, err := p.LookupAlbum(ctx, "1051394208")
	require.NoError(t, err)
	assert.Equal(t, 11, album.TotalTracks)

	_, err = p.LookupTrack(ctx, "1051394208")
	assert.ErrorIs(t, err, ErrNotFound, "a collection is not a song")
	_, err = p.LookupAlbum(ctx, "0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t, "https://music.apple.com/us/album/x/1?i=2", cleanURL("https://music.apple.com/us/album/x/1?i=2&uo=4"))
	assert.Equal(t, "https://music.apple.com/us/album/x/1", cleanURL("https://music.apple.com/us/album/x/1"))
}

func TestITunesSearchErrorIsDegraded(t *testing.T) {
	calls := 0
	p := newSearchProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"resultCount":0,"results":[]}`))
	})

	failed := p.SearchTrack(context.Background(), hello)
	assert.True(t, failed.IsFallback())
	assert.True(t, failed.IsDegraded())

	empty := p.SearchTrack(context.Background(), hello)
	assert.True(t, empty.IsFallback())
	assert.False(t, empty.IsDegraded())
}
