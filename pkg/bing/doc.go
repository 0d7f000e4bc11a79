// Package bing provides a client for the Bing Image Search v7 API.
//
// The Client implements search.Provider: each FetchPage call issues one
// search request with the offset carried in the continuation token, and
// every attempt waits on the per-second quota window and the request gate
// shared with the downloader.
//
// Example usage:
//
//	gate := ratelimit.NewGate(cfg.RateLimit.RequestDelay)
//	client := bing.NewClient(bing.OptionsFromConfig(cfg), gate, log)
//
//	it := search.NewIterator(client, "red panda", cfg.Search.PageSize)
//	for {
//		ref, err := it.Next(ctx)
//		if errors.Is(err, search.ErrNoMoreResults) {
//			break
//		}
//		if err != nil {
//			// authentication, parsing or exhausted retries
//			return err
//		}
//		_ = ref
//	}
package bing
