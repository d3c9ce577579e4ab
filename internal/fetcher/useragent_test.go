package fetcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserAgentPoolPick(t *testing.T) {
	t.Parallel()

	require.Empty(t, UserAgentPool(nil).Pick())
	require.Equal(t, "only", UserAgentPool{"only"}.Pick())

	pool := UserAgentPool{"a", "b", "c"}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		ua := pool.Pick()
		require.Contains(t, pool, ua)
		seen[ua] = true
	}
	require.Len(t, seen, 3)
}
