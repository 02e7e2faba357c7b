package engine

import "time"

// minRefreshInterval bounds external API consumption: absent a
// configuration change, at least this long must pass between fetch cycles.
const minRefreshInterval = 600 * time.Second

// shouldRefresh gates a fetch cycle. It returns true when
//
//   - no cycle has ever completed, or
//   - the fetch-relevant configuration fingerprint changed (source list or
//     window length; cosmetic edits do not count), or
//   - at least minRefreshInterval has elapsed since the last successful
//     refresh.
func shouldRefresh(now, lastRefresh time.Time, lastFingerprint, fingerprint string) bool {
	if lastRefresh.IsZero() {
		return true
	}
	if lastFingerprint != fingerprint {
		return true
	}
	return now.Sub(lastRefresh) >= minRefreshInterval
}
