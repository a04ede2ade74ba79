// Package redis provides the remote tier of the process cache: a go-redis
// client with satkit config and logging conventions, a cache.Remote adapter
// and a lifecycle component.
//
//	comp := redis.NewComponent(cfg.Redis, log)
//	registry.Register(comp)
//	// after StartAll
//	tiered := cache.NewTiered(store, cfg.Cache, cache.WithRemote(comp.Remote()))
//
// The adapter stores opaque strings; the cache package owns encoding.
package redis
