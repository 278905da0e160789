// Package cache implements the two-tier shared cache: a bounded in-process
// store backed by a remote shared store, behind a single service API.
//
// The service provides TTL expiry, LRU-style capacity eviction on the local
// tier, batch operations, tag-based invalidation and operational metrics.
// Reads try the remote tier first and replicate hits into the local tier;
// writes go to both tiers with the remote written first. When the remote
// tier is unreachable the whole cache degrades to local-only semantics
// (smaller effective capacity, no cross-process sharing) rather than failing
// requests.
//
// The two tiers expire independently. The contract is remote-wins-on-read
// with a disposable local replica, not strict coherence: a short window in
// which the tiers disagree is accepted behavior.
//
// Usage:
//
//	remote, _ := redis.NewClient(&redis.Config{
//		Address:   "localhost:6379",
//		KeyPrefix: "app:",
//	}, logger)
//
//	svc := cache.New(cache.Config{
//		DefaultTTL:    5 * time.Minute,
//		LocalCapacity: 1000,
//	}, remote, logger)
//	svc.Start()
//	defer svc.Close()
//
//	_ = svc.Set(ctx, "user:42", user)
//
//	var cached User
//	found, err := svc.Get(ctx, "user:42", &cached)
package cache
