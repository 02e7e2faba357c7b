package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRefresh(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	fp := "days=7;family=https://cal.example/family.ics"

	// Never refreshed: always run.
	assert.True(shouldRefresh(now, time.Time{}, "", fp))

	// Fresh refresh, unchanged config: throttled.
	assert.False(shouldRefresh(now, now, fp, fp))

	// Just under the interval: still throttled.
	assert.False(shouldRefresh(now, now.Add(-599*time.Second), fp, fp))

	// Interval elapsed: run regardless of configuration.
	assert.True(shouldRefresh(now, now.Add(-600*time.Second), fp, fp))
	assert.True(shouldRefresh(now, now.Add(-601*time.Second), fp, fp))

	// Changed source list: run at any elapsed time.
	changed := fp + ";work=https://cal.example/work.ics"
	assert.True(shouldRefresh(now, now, fp, changed))
}
