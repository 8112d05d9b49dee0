package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosslink/internal/models"
)

const appleSongURL = "https://music.apple.com/us/album/25/1051394208?i=1051394215"

func appleHello() models.TrackMetadata {
	return models.TrackMetadata{
		ID:         "1051394215",
		Name:       "Hello",
		Artists:    []string{"Adele"},
		Album:      "25",
		DurationMs: 295000,
	}
}

func TestReversePreciseSearchReentersForward(t *testing.T) {
	f := newFixture()
	f.source.precise = []models.TrackMetadata{helloTrack}
	r := f.resolver(WithLookup(models.PlatformAppleMusic, fakeLookup{track: appleHello()}))

	res, err := r.Resolve(context.Background(), appleSongURL)
	require.NoError(t, err)
	assert.False(t, res.Partial)
	require.NotNil(t, res.Track)
	assert.Equal(t, helloTrack.ID, res.Track.ID)
	assert.Equal(t, "https://song.link/s/"+helloTrack.ID, res.SongLink)
	assert.True(t, res.AppleMusic.IsMatched(), "apple slot comes from the forward pass")
	assert.Equal(t, []string{"precise:Hello/Adele"}, f.source.searches)
	assert.Equal(t, 1, f.source.gets)

	// The forward pass cached under the source id.
	again, err := r.Resolve(context.Background(), "spotify:track:"+helloTrack.ID)
	require.NoError(t, err)
	assert.True(t, again.FromCache)
}

func TestReverseFallsBackToFreeText(t *testing.T) {
	f := newFixture()
	f.source.precise = nil
	f.source.freeText = []models.TrackMetadata{
		{ID: "other", Name: "Hello", Artists: []string{"Lionel Richie"}, DurationMs: 250000},
		helloTrack,
	}
	r := f.resolver(WithLookup(models.PlatformAppleMusic, fakeLookup{track: appleHello()}))

	res, err := r.Resolve(context.Background(), appleSongURL)
	require.NoError(t, err)
	assert.Equal(t, helloTrack.ID, res.Track.ID)
	assert.Equal(t, []string{"precise:Hello/Adele", "text:Hello Adele"}, f.source.searches)
}

func TestReverseISRCEqualityWins(t *testing.T) {
	f := newFixture()
	foreign := appleHello()
	foreign.ISRC = "GBBKS1500214"
	foreign.Name = "Bonjour"
	hit := helloTrack
	hit.ISRC = "gbbks1500214"
	f.source.precise = []models.TrackMetadata{hit}
	r := f.resolver(WithLookup(models.PlatformAppleMusic, fakeLookup{track: foreign}))

	res, err := r.Resolve(context.Background(), appleSongURL)
	require.NoError(t, err)
	assert.False(t, res.Partial)
	assert.Equal(t, helloTrack.ID, res.Track.ID)
}

func TestReverseNotFoundReturnsPartial(t *testing.T) {
	f := newFixture()
	f.source.precise = []models.TrackMetadata{{ID: "x", Name: "Goodbye", Artists: []string{"Someone"}}}
	r := f.resolver(WithLookup(models.PlatformYouTube, fakeLookup{track: models.TrackMetadata{ID: "YQHsXMglC9A", Name: "Hello", Artists: []string{"Adele"}}}))

	input := "https://www.youtube.com/watch?v=YQHsXMglC9A"
	res, err := r.Resolve(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.False(t, res.Unresolved())
	assert.True(t, res.YouTube.IsMatched())
	assert.Equal(t, input, res.YouTube.URL())
	assert.Equal(t, 1.0, res.YouTube.Confidence())
	assert.True(t, res.AppleMusic.IsAbsent())
	assert.Empty(t, res.SongLink)
	assert.Zero(t, f.apple.calls.Load())
	assert.Zero(t, f.store.Len(), "partial results are not cached")
}

func TestReverseSearchErrorsReturnPartial(t *testing.T) {
	f := newFixture()
	f.source.searchErr = errors.New("spotify unavailable")
	r := f.resolver(WithLookup(models.PlatformAppleMusic, fakeLookup{track: appleHello()}))

	res, err := r.Resolve(context.Background(), appleSongURL)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, appleSongURL, res.AppleMusic.URL())
}

func TestReverseLookupFailureIsAnError(t *testing.T) {
	f := newFixture()
	boom := errors.New("catalog down")
	r := f.resolver(WithLookup(models.PlatformAppleMusic, fakeLookup{err: boom}))

	_, err := r.Resolve(context.Background(), appleSongURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetadataLookup)
	assert.ErrorIs(t, err, boom)
}

func TestReverseWithoutLookupIsAnError(t *testing.T) {
	f := newFixture()
	_, err := f.resolver().Resolve(context.Background(), "https://youtu.be/YQHsXMglC9A")
	assert.ErrorIs(t, err, ErrMetadataLookup)
}

func TestReverseAlbum(t *testing.T) {
	f := newFixture()
	f.source.preciseAlbums = []models.AlbumMetadata{{ID: album25.ID, Name: "25", Artists: []string{"Adele"}, ReleaseYear: 2015}}
	foreign := models.AlbumMetadata{ID: "1051394208", Name: "25", Artists: []string{"Adele"}, TotalTracks: 11, ReleaseYear: 2015}
	r := f.resolver(WithLookup(models.PlatformAppleMusic, fakeLookup{album: foreign}))

	res, err := r.Resolve(context.Background(), "https://music.apple.com/us/album/25/1051394208")
	require.NoError(t, err)
	require.NotNil(t, res.Album)
	assert.Equal(t, album25.ID, res.Album.ID)
	assert.Equal(t, album25.TotalTracks, res.Album.TotalTracks, "canonical metadata comes from the source catalog")
}
