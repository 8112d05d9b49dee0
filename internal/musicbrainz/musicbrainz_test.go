package musicbrainz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"crosslink/internal/fetch"
	"crosslink/internal/kvstore"
)

type fakeMB struct {
	searches atomic.Int32
	details  atomic.Int32
	search   string
	detail   map[string]string
	failAll  bool
}

func (f *fakeMB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if f.failAll {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if r.URL.Query().Get("fmt") != "json" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/ws/2")
	switch path {
	case "/recording", "/release":
		f.searches.Add(1)
		_, _ = w.Write([]byte(f.search))
		return
	}
	f.details.Add(1)
	body, ok := f.detail[path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, fake *fakeMB) (*Client, *kvstore.Memory) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	store := kvstore.NewMemory()
	c := New(fetch.New(), store,
		WithBaseURL(srv.URL+"/ws/2"),
		WithLocalLimiter(rate.NewLimiter(rate.Inf, 1)))
	return c, store
}

func TestLookupTrackISRCPrefersAlbumReleases(t *testing.T) {
	fake := &fakeMB{
		search: `{"recordings":[
			{"id":"single","score":100,"releases":[{"release-group":{"primary-type":"Single"}}]},
			{"id":"weak","score":60,"releases":[{"release-group":{"primary-type":"Album"}}]},
			{"id":"album","score":90,"releases":[{"release-group":{"primary-type":"Album"}}]}
		]}`,
		detail: map[string]string{
			"/recording/single": `{"isrcs":["GBAAA0000001"]}`,
			"/recording/album":  `{"isrcs":["gbbkS1500214"]}`,
		},
	}
	c, _ := newTestClient(t, fake)

	isrc, ok := c.LookupTrackISRC(context.Background(), "Adele", "Hello")
	require.True(t, ok)
	assert.Equal(t, "GBBKS1500214", isrc)
	assert.Equal(t, int32(1), fake.details.Load())
}

func TestLookupTrackISRCFallsThroughEmptyDetails(t *testing.T) {
	fake := &fakeMB{
		search: `{"recordings":[{"id":"a","score":100},{"id":"b","score":95},{"id":"c","score":90},{"id":"d","score":85}]}`,
		detail: map[string]string{
			"/recording/a": `{"isrcs":[]}`,
			"/recording/b": `{"isrcs":["USAAA1111111"]}`,
			"/recording/d": `{"isrcs":["USDDD1111111"]}`,
		},
	}
	c, _ := newTestClient(t, fake)

	isrc, ok := c.LookupTrackISRC(context.Background(), "Adele", "Hello")
	require.True(t, ok)
	assert.Equal(t, "USAAA1111111", isrc)
}

func TestLookupCachesAbsence(t *testing.T) {
	fake := &fakeMB{search: `{"recordings":[{"id":"x","score":40}]}`}
	c, store := newTestClient(t, fake)
	ctx := context.Background()

	_, ok := c.LookupTrackISRC(ctx, "Nobody", "Nothing")
	assert.False(t, ok)
	_, ok = c.LookupTrackISRC(ctx, "Nobody", "Nothing")
	assert.False(t, ok)

	assert.Equal(t, int32(1), fake.searches.Load(), "negative result is served from cache")
	raw, found, err := store.Get(ctx, CacheKey("isrc", "Nobody", "Nothing"))
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"status":"absent"}`, string(raw))
}

func TestLookupCachesHit(t *testing.T) {
	fake := &fakeMB{
		search: `{"releases":[{"id":"r1","score":100,"release-group":{"primary-type":"Album"}}]}`,
		detail: map[string]string{"/release/r1": `{"barcode":"886445581153"}`},
	}
	c, _ := newTestClient(t, fake)
	ctx := context.Background()

	upc, ok := c.LookupAlbumUPC(ctx, "Adele", "25")
	require.True(t, ok)
	assert.Equal(t, "886445581153", upc)

	upc, ok = c.LookupAlbumUPC(ctx, "ADELE", "25")
	require.True(t, ok)
	assert.Equal(t, "886445581153", upc)
	assert.Equal(t, int32(1), fake.searches.Load())
	assert.Equal(t, int32(1), fake.details.Load())
}

func TestLookupErrorsAreNotCached(t *testing.T) {
	fake := &fakeMB{failAll: true}
	c, store := newTestClient(t, fake)
	ctx := context.Background()

	_, ok := c.LookupTrackISRC(ctx, "Adele", "Hello")
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestLookupSkipsBlankInput(t *testing.T) {
	fake := &fakeMB{}
	c, _ := newTestClient(t, fake)
	_, ok := c.LookupTrackISRC(context.Background(), "", "Hello")
	assert.False(t, ok)
	assert.Zero(t, fake.searches.Load())
}

func TestCacheKeyFoldsAccentsAndPunctuation(t *testing.T) {
	assert.Equal(t, "mb:isrc:beyonce:halo", CacheKey("isrc", "Beyoncé", "Halo!"))
	assert.Equal(t, CacheKey("upc", "Sigur Rós", "( )"), CacheKey("upc", "sigur ros", ""))
	assert.Equal(t, "mb:isrc:acdc:back in black", CacheKey("isrc", "AC/DC", "  Back   in Black "))
}

func TestEscapeLucene(t *testing.T) {
	assert.Equal(t, `AC\/DC`, EscapeLucene("AC/DC"))
	assert.Equal(t, `What\? \(Live\)`, EscapeLucene("What? (Live)"))
	assert.Equal(t, `say \"hi\"`, EscapeLucene(`say "hi"`))
	assert.Equal(t, `a\\b`, EscapeLucene(`a\b`))
}
