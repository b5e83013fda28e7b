// Package ratelimit paces the requests issued by the fetchlog CLI.
//
// Two algorithms implement Limiter:
//
// Token Bucket:
//   - Fixed capacity bucket refilled in full after each period
//   - Allows bursts followed by quiet periods
//
// Sliding Window:
//   - Counts requests inside a moving window
//   - Used by PerMinute for the --rate-limit flag
//
// Usage:
//
//	limiter := ratelimit.PerMinute(120)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// issue the request
package ratelimit
