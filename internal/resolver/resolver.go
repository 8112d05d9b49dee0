// Package resolver turns a link from any supported platform into the
// equivalent links on every other platform.
//
// Spotify is the source platform: every resolution is keyed and cached by a
// Spotify id. Links from partner platforms are first resolved back to Spotify
// and then resolved forward like any Spotify link.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"crosslink/internal/identifier"
	"crosslink/internal/kvstore"
	"crosslink/internal/logging"
	"crosslink/internal/models"
)

const DefaultCacheTTL = 7 * 24 * time.Hour

// ErrMetadataLookup means the canonical metadata for the given id could not
// be fetched, so nothing can be resolved.
var ErrMetadataLookup = errors.New("resolver: metadata lookup failed")

// Provider finds the equivalent of a source item on one partner platform.
// Not finding it is an outcome, never an error.
type Provider interface {
	Platform() models.Platform
	SearchTrack(ctx context.Context, t models.TrackMetadata) models.Outcome
	SearchAlbum(ctx context.Context, a models.AlbumMetadata) models.Outcome
}

// SourceClient is the source platform's catalog.
type SourceClient interface {
	GetTrack(ctx context.Context, id string) (models.TrackMetadata, error)
	GetAlbum(ctx context.Context, id string) (models.AlbumMetadata, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackMetadata, error)
	SearchAlbums(ctx context.Context, query string, limit int) ([]models.AlbumMetadata, error)
	PreciseSearchTrack(ctx context.Context, title, artist string, limit int) ([]models.TrackMetadata, error)
	PreciseSearchAlbum(ctx context.Context, name, artist string, limit int) ([]models.AlbumMetadata, error)
}

// Lookup fetches metadata for an id on a partner platform.
type Lookup interface {
	LookupTrack(ctx context.Context, id string) (models.TrackMetadata, error)
	LookupAlbum(ctx context.Context, id string) (models.AlbumMetadata, error)
}

// Enricher fills in identifiers the source catalog did not provide.
type Enricher interface {
	LookupTrackISRC(ctx context.Context, artist, track string) (string, bool)
	LookupAlbumUPC(ctx context.Context, artist, album string) (string, bool)
}

type Resolver struct {
	source    SourceClient
	providers []Provider
	lookups   map[models.Platform]Lookup
	enricher  Enricher
	store     kvstore.Store
	ttl       time.Duration
	logger    *slog.Logger
}

type Option func(*Resolver)

func WithEnricher(e Enricher) Option {
	return func(r *Resolver) { r.enricher = e }
}

// WithLookup registers the detail lookup used for links from platform p.
func WithLookup(p models.Platform, l Lookup) Option {
	return func(r *Resolver) { r.lookups[p] = l }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func New(source SourceClient, store kvstore.Store, providers []Provider, opts ...Option) *Resolver {
	r := &Resolver{
		source:    source,
		providers: providers,
		lookups:   make(map[models.Platform]Lookup),
		store:     store,
		ttl:       DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "resolver")
	return r
}

// Resolve parses input and resolves it. Unrecognized input and artist links
// yield an unresolved result and a nil error.
func (r *Resolver) Resolve(ctx context.Context, input string) (*models.Resolution, error) {
	parsed := identifier.Parse(input)
	ctx = logging.With(ctx, "input", input, "platform", string(parsed.Platform))

	if !parsed.Known() {
		r.logger.DebugContext(ctx, "unrecognized input")
		return &models.Resolution{ContentType: models.ContentUnknown}, nil
	}
	if parsed.ContentType != models.ContentTrack && parsed.ContentType != models.ContentAlbum {
		r.logger.DebugContext(ctx, "content type not resolvable", slog.String("type", string(parsed.ContentType)))
		return &models.Resolution{ContentType: parsed.ContentType}, nil
	}

	if parsed.Platform.IsSource() {
		return r.forward(ctx, parsed.ContentType, parsed.ID)
	}
	return r.reverse(ctx, parsed)
}

// forward resolves a source id, fetching its canonical metadata on a miss.
func (r *Resolver) forward(ctx context.Context, ct models.ContentType, id string) (*models.Resolution, error) {
	if res, ok := r.cached(ctx, ct, id); ok {
		return res, nil
	}
	switch ct {
	case models.ContentTrack:
		t, err := r.source.GetTrack(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMetadataLookup, err)
		}
		return r.resolveTrack(ctx, t), nil
	default:
		a, err := r.source.GetAlbum(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMetadataLookup, err)
		}
		return r.resolveAlbum(ctx, a), nil
	}
}

// ResolveTrack resolves a source track whose metadata the caller already has.
func (r *Resolver) ResolveTrack(ctx context.Context, t models.TrackMetadata) *models.Resolution {
	if res, ok := r.cached(ctx, models.ContentTrack, t.ID); ok {
		return res
	}
	return r.resolveTrack(ctx, t)
}

// ResolveAlbum resolves a source album whose metadata the caller already has.
func (r *Resolver) ResolveAlbum(ctx context.Context, a models.AlbumMetadata) *models.Resolution {
	if res, ok := r.cached(ctx, models.ContentAlbum, a.ID); ok {
		return res
	}
	return r.resolveAlbum(ctx, a)
}

func (r *Resolver) resolveTrack(ctx context.Context, t models.TrackMetadata) *models.Resolution {
	if t.ISRC == "" && r.enricher != nil {
		if isrc, ok := r.enricher.LookupTrackISRC(ctx, t.PrimaryArtist(), t.Name); ok {
			t.ISRC = isrc
		}
	}
	res := &models.Resolution{ContentType: models.ContentTrack, Track: &t}
	r.fanOut(ctx, res, func(ctx context.Context, p Provider) models.Outcome {
		return p.SearchTrack(ctx, t)
	})
	return r.finish(ctx, res, t.ID)
}

func (r *Resolver) resolveAlbum(ctx context.Context, a models.AlbumMetadata) *models.Resolution {
	if a.UPC == "" && r.enricher != nil {
		if upc, ok := r.enricher.LookupAlbumUPC(ctx, a.PrimaryArtist(), a.Name); ok {
			a.UPC = upc
		}
	}
	res := &models.Resolution{ContentType: models.ContentAlbum, Album: &a}
	r.fanOut(ctx, res, func(ctx context.Context, p Provider) models.Outcome {
		return p.SearchAlbum(ctx, a)
	})
	return r.finish(ctx, res, a.ID)
}

// fanOut queries every provider concurrently. Providers do not fail, so the
// group never cancels its siblings.
func (r *Resolver) fanOut(ctx context.Context, res *models.Resolution, search func(context.Context, Provider) models.Outcome) {
	outcomes := make([]models.Outcome, len(r.providers))
	var g errgroup.Group
	for i, p := range r.providers {
		g.Go(func() error {
			outcomes[i] = search(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	for i, p := range r.providers {
		o := outcomes[i]
		r.logger.DebugContext(ctx, "provider outcome",
			slog.String("provider", string(p.Platform())),
			slog.Bool("matched", o.IsMatched()),
			slog.Float64("confidence", o.Confidence()))
		res.SetOutcome(p.Platform(), o)
	}
}

func (r *Resolver) finish(ctx context.Context, res *models.Resolution, id string) *models.Resolution {
	res.SongLink = identifier.SongLinkURL(res.ContentType, id)
	if degraded(ctx, res) {
		r.logger.InfoContext(ctx, "provider unavailable, resolution not cached", slog.String("id", id))
	} else {
		r.remember(ctx, res, id)
	}
	r.logger.InfoContext(ctx, "resolved",
		slog.String("type", string(res.ContentType)),
		slog.String("id", id),
		slog.Bool("apple_music", res.AppleMusic.IsMatched()),
		slog.Bool("youtube", res.YouTube.IsMatched()))
	return res
}

// degraded reports whether any slot reflects an upstream failure, or the
// request was cancelled while providers ran.
func degraded(ctx context.Context, res *models.Resolution) bool {
	return ctx.Err() != nil || res.AppleMusic.IsDegraded() || res.YouTube.IsDegraded()
}
