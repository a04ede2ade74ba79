// Package cache provides the process cache: a bounded local Store with TTL and
// approximate LRU eviction, and a Tiered cache that reads through an optional
// shared remote backend before falling back to the local Store.
//
// Callers build one Store and one Tiered at startup and inject them:
//
//	store := cache.NewStore(cache.WithCapacity(cfg.Cache.Capacity))
//	tiered := cache.NewTiered(store, cfg.Cache, cache.WithRemote(remote))
//
//	summary, err := cache.Wrap(ctx, tiered, cache.KeyFromPairs("summary", "rfc", rfc), time.Minute,
//	    func(ctx context.Context) (Summary, error) { return loadSummary(ctx, rfc) })
//
// Remote failures never surface to callers. Prefix invalidation only touches
// the local tier; remote entries expire by TTL.
package cache
