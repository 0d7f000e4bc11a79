// Package retry runs operations under an explicit bounded-retry Policy.
//
// A Policy names how many attempts are allowed and which error types may be
// retried; only typed errors flagged transient qualify. Downloads use
// DownloadPolicy (network transients only, constant pause) and the search
// client uses SearchPolicy (network, throttling and server errors,
// exponential backoff).
//
//	policy := retry.DownloadPolicy(cfg.Download.RetryCount, cfg.Download.RetryDelay)
//	err := retry.Do(ctx, policy, func(attempt int) error {
//		if err := gate.Wait(ctx); err != nil {
//			return err
//		}
//		return fetchOnce(ctx, url)
//	})
package retry
