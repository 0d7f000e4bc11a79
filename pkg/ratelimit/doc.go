// Package ratelimit provides the limiters that pace outbound requests.
//
// Gate is the shared request gate: every image download and every search
// call acquires it, so requests leaving the process are spaced by at least
// the configured delay no matter how many workers are running. It is backed
// by golang.org/x/time/rate with a burst of one.
//
// SlidingWindow caps the number of calls within a moving window. The Bing
// client layers it over the Gate to respect the API's calls-per-second
// quota.
//
//	gate := ratelimit.NewGate(500 * time.Millisecond)
//	if err := gate.Wait(ctx); err != nil {
//	    return err // ctx canceled while waiting
//	}
package ratelimit
