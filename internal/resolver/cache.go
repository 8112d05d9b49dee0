package resolver

import (
	"context"

	"crosslink/internal/kvstore"
	"crosslink/internal/logging"
	"crosslink/internal/models"
)

// CacheKey is the store key of a resolution for a source id.
func CacheKey(ct models.ContentType, id string) string {
	return "resolve:" + string(ct) + ":" + id
}

// cached returns a stored resolution. Store errors and undecodable entries
// are misses.
func (r *Resolver) cached(ctx context.Context, ct models.ContentType, id string) (*models.Resolution, bool) {
	if id == "" || r.store == nil {
		return nil, false
	}
	var res models.Resolution
	found, err := kvstore.GetJSON(ctx, r.store, CacheKey(ct, id), &res)
	if err != nil {
		r.logger.WarnContext(ctx, "resolution cache read failed", logging.Error(err))
		return nil, false
	}
	if !found || res.ContentType != ct {
		return nil, false
	}
	res.FromCache = true
	r.logger.DebugContext(ctx, "resolution cache hit")
	return &res, true
}

func (r *Resolver) remember(ctx context.Context, res *models.Resolution, id string) {
	if id == "" || r.store == nil {
		return
	}
	if err := kvstore.PutJSON(ctx, r.store, CacheKey(res.ContentType, id), res, r.ttl); err != nil {
		r.logger.WarnContext(ctx, "resolution cache write failed", logging.Error(err))
	}
}
