package link

import (
	"time"

	"deeplink/internal/model"
)

// PushHistory puts value at the front, drops any older copy of the exact
// same value and caps the list.
func PushHistory(items []model.HistoryEntry, value string, now time.Time, limit int) []model.HistoryEntry {
	out := make([]model.HistoryEntry, 0, len(items)+1)
	out = append(out, model.HistoryEntry{Value: value, Time: now.UnixMilli()})
	for _, item := range items {
		if item.Value == value {
			continue
		}
		out = append(out, item)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PruneHistory drops blank and expired entries. changed reports whether
// anything was removed so callers know to write the list back.
func PruneHistory(items []model.HistoryEntry, now time.Time, ttl time.Duration) (kept []model.HistoryEntry, changed bool) {
	cutoff := now.Add(-ttl).UnixMilli()
	for _, item := range items {
		if item.Value == "" || item.Time <= cutoff {
			changed = true
			continue
		}
		kept = append(kept, item)
	}
	return kept, changed
}
