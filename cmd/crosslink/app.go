package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"crosslink/internal/applemusic"
	"crosslink/internal/config"
	"crosslink/internal/fetch"
	"crosslink/internal/kvstore"
	"crosslink/internal/models"
	"crosslink/internal/musicbrainz"
	"crosslink/internal/ratelimit"
	"crosslink/internal/resolver"
	"crosslink/internal/spotify"
	"crosslink/internal/youtube"
)

// Watch pages are large; give them longer than the JSON APIs.
const watchPageTimeout = 30 * time.Second

type app struct {
	store    kvstore.Store
	resolver *resolver.Resolver
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := kvstore.Open(cfg.CacheBackend, cfg.CacheDSN())
	if err != nil {
		return nil, err
	}

	limited := func(name string, perMinute int) http.RoundTripper {
		l := ratelimit.New(store, ratelimit.Config{Name: name, MaxRequests: perMinute}, ratelimit.WithLogger(logger))
		return ratelimit.NewTransport(http.DefaultTransport, l)
	}

	sp := spotify.NewWithCredentials(ctx, cfg.SpotifyID, cfg.SpotifySecret,
		limited("spotify", cfg.SpotifyRateLimit), spotify.WithLogger(logger))

	mb := musicbrainz.New(
		fetch.New(
			fetch.WithTransport(limited("musicbrainz", cfg.MusicBrainzRateLimit)),
			fetch.WithUserAgent(cfg.MusicBrainzUserAgent),
		),
		store,
		musicbrainz.WithLogger(logger),
	)

	appleFetch := fetch.New(fetch.WithTransport(limited("apple_music", cfg.AppleRateLimit)))
	var apple interface {
		resolver.Provider
		resolver.Lookup
	}
	if cfg.AppleCatalogEnabled() {
		pemKey, err := applemusic.ReadPrivateKey(cfg.ApplePrivateKey)
		if err != nil {
			closeStore(store)
			return nil, err
		}
		signer, err := applemusic.NewTokenSigner(cfg.AppleKeyID, cfg.AppleTeamID, pemKey)
		if err != nil {
			closeStore(store)
			return nil, err
		}
		apple = applemusic.NewCatalogProvider(appleFetch, signer, cfg.AppleStorefront, applemusic.WithLogger(logger))
	} else {
		logger.Info("apple music developer token not configured, using iTunes search")
		apple = applemusic.NewSearchProvider(appleFetch, cfg.AppleStorefront, applemusic.WithLogger(logger))
	}

	var yt resolver.Provider = youtube.FallbackProvider{}
	if cfg.YouTubeAPIKey != "" {
		yt = youtube.NewSearchProvider(fetch.New(), cfg.YouTubeAPIKey, youtube.WithLogger(logger))
	} else {
		logger.Info("YOUTUBE_API_KEY not set, youtube results are search links")
	}
	videos := youtube.NewVideoLookup(youtube.NewWatchPageFetcher(&http.Client{Timeout: watchPageTimeout}))

	res := resolver.New(sp, store, []resolver.Provider{apple, yt},
		resolver.WithEnricher(mb),
		resolver.WithLookup(models.PlatformAppleMusic, apple),
		resolver.WithLookup(models.PlatformYouTube, videos),
		resolver.WithLogger(logger),
	)
	return &app{store: store, resolver: res}, nil
}

func (a *app) Close() error {
	return closeStore(a.store)
}

func closeStore(s kvstore.Store) error {
	if c, ok := s.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close cache: %w", err)
		}
	}
	return nil
}
