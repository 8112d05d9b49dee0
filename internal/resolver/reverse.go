package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"crosslink/internal/logging"
	"crosslink/internal/matcher"
	"crosslink/internal/models"
)

const (
	preciseLimit  = 5
	freeTextLimit = 10
)

// reverse resolves a partner link: fetch its metadata on that platform, find
// the item on the source platform, then resolve forward from there.
func (r *Resolver) reverse(ctx context.Context, parsed models.ParsedIdentifier) (*models.Resolution, error) {
	lookup, ok := r.lookups[parsed.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: no lookup for %s", ErrMetadataLookup, parsed.Platform)
	}

	switch parsed.ContentType {
	case models.ContentTrack:
		foreign, err := lookup.LookupTrack(ctx, parsed.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMetadataLookup, err)
		}
		if id, ok := r.findSourceTrack(ctx, foreign); ok {
			return r.forward(ctx, models.ContentTrack, id)
		}
		return r.partial(ctx, parsed, &models.Resolution{ContentType: models.ContentTrack, Track: &foreign}), nil
	default:
		foreign, err := lookup.LookupAlbum(ctx, parsed.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMetadataLookup, err)
		}
		if id, ok := r.findSourceAlbum(ctx, foreign); ok {
			return r.forward(ctx, models.ContentAlbum, id)
		}
		return r.partial(ctx, parsed, &models.Resolution{ContentType: models.ContentAlbum, Album: &foreign}), nil
	}
}

// partial carries only the link that was given.
func (r *Resolver) partial(ctx context.Context, parsed models.ParsedIdentifier, res *models.Resolution) *models.Resolution {
	res.Partial = true
	res.SetOutcome(parsed.Platform, models.Matched(parsed.OriginalInput, 1, nil))
	r.logger.InfoContext(ctx, "no source equivalent, returning partial result")
	return res
}

// findSourceTrack tries a field-filtered search, then free text. An ISRC
// match wins outright; otherwise the best candidate must clear the threshold.
func (r *Resolver) findSourceTrack(ctx context.Context, foreign models.TrackMetadata) (string, bool) {
	searches := []func() ([]models.TrackMetadata, error){
		func() ([]models.TrackMetadata, error) {
			return r.source.PreciseSearchTrack(ctx, foreign.Name, foreign.PrimaryArtist(), preciseLimit)
		},
		func() ([]models.TrackMetadata, error) {
			return r.source.SearchTracks(ctx, freeText(foreign.Name, foreign.PrimaryArtist()), freeTextLimit)
		},
	}
	for _, search := range searches {
		candidates, err := search()
		if err != nil {
			r.logger.WarnContext(ctx, "source track search failed", logging.Error(err))
			continue
		}
		if foreign.ISRC != "" {
			for _, c := range candidates {
				if strings.EqualFold(c.ISRC, foreign.ISRC) && c.ID != "" {
					return c.ID, true
				}
			}
		}
		if i, conf := matcher.BestTrack(foreign, candidates); i >= 0 && matcher.Accepted(conf) && candidates[i].ID != "" {
			r.logger.DebugContext(ctx, "source track found", slog.String("id", candidates[i].ID), slog.Float64("confidence", conf))
			return candidates[i].ID, true
		}
	}
	return "", false
}

func (r *Resolver) findSourceAlbum(ctx context.Context, foreign models.AlbumMetadata) (string, bool) {
	searches := []func() ([]models.AlbumMetadata, error){
		func() ([]models.AlbumMetadata, error) {
			return r.source.PreciseSearchAlbum(ctx, foreign.Name, foreign.PrimaryArtist(), preciseLimit)
		},
		func() ([]models.AlbumMetadata, error) {
			return r.source.SearchAlbums(ctx, freeText(foreign.Name, foreign.PrimaryArtist()), freeTextLimit)
		},
	}
	for _, search := range searches {
		candidates, err := search()
		if err != nil {
			r.logger.WarnContext(ctx, "source album search failed", logging.Error(err))
			continue
		}
		if foreign.UPC != "" {
			for _, c := range candidates {
				if c.UPC == foreign.UPC && c.ID != "" {
					return c.ID, true
				}
			}
		}
		if i, conf := matcher.BestAlbum(foreign, candidates); i >= 0 && matcher.Accepted(conf) && candidates[i].ID != "" {
			r.logger.DebugContext(ctx, "source album found", slog.String("id", candidates[i].ID), slog.Float64("confidence", conf))
			return candidates[i].ID, true
		}
	}
	return "", false
}

func freeText(name, artist string) string {
	return strings.TrimSpace(name + " " + artist)
}
