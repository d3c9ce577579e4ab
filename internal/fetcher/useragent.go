// Package fetcher holds helpers shared by the page fetchers.
package fetcher

import "math/rand/v2"

// UserAgentPool rotates user-agent strings between attempts. It is a weak
// anti-blocking measure, not a security control.
type UserAgentPool []string

// Pick returns a random entry, or "" for an empty pool.
func (p UserAgentPool) Pick() string {
	if len(p) == 0 {
		return ""
	}
	return p[rand.IntN(len(p))]
}
