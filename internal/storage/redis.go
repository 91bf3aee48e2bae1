package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deeplink/internal/link"
	"deeplink/internal/model"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/redis/go-redis/v9"
)

const (
	watchedKey          = "watched_domains"
	reportHistoryPrefix = "report_history:"
	reportCachePrefix   = "report_cache:"
	linkHistoryPrefix   = "deeplink_history:"
	maxReportHistory    = 100
	maxHistoryRetries   = 10
)

type Storage struct {
	Client       *redis.Client
	HistoryLimit int
	HistoryTTL   time.Duration
	Now          func() time.Time
}

func NewStorage(host, port string) *Storage {
	rdb := redis.NewClient(&redis.Options{
		Addr: host + ":" + port,
		DB:   0,
	})
	return &Storage{
		Client:       rdb,
		HistoryLimit: 10,
		HistoryTTL:   7 * 24 * time.Hour,
	}
}

func (s *Storage) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// GetLinkHistory returns the link tester history of client, newest first.
// Expired entries are dropped and the pruned list is written back.
func (s *Storage) GetLinkHistory(ctx context.Context, client string) ([]model.HistoryEntry, error) {
	if s.HistoryTTL <= 0 {
		return readLinkHistory(ctx, s.Client, linkHistoryPrefix+client)
	}
	return s.updateLinkHistory(ctx, client, func(items []model.HistoryEntry) ([]model.HistoryEntry, bool) {
		return link.PruneHistory(items, s.now(), s.HistoryTTL)
	})
}

// AddLinkHistory records value as the most recent link of client.
func (s *Storage) AddLinkHistory(ctx context.Context, client, value string) ([]model.HistoryEntry, error) {
	return s.updateLinkHistory(ctx, client, func(items []model.HistoryEntry) ([]model.HistoryEntry, bool) {
		if s.HistoryTTL > 0 {
			items, _ = link.PruneHistory(items, s.now(), s.HistoryTTL)
		}
		return link.PushHistory(items, value, s.now(), s.HistoryLimit), true
	})
}

func (s *Storage) ClearLinkHistory(ctx context.Context, client string) error {
	return s.Client.Del(ctx, linkHistoryPrefix+client).Err()
}

// updateLinkHistory runs fn over the stored list inside a WATCH on the
// key and writes the result back when fn reports a change. A concurrent
// writer makes the transaction fail and the update is retried.
func (s *Storage) updateLinkHistory(ctx context.Context, client string, fn func([]model.HistoryEntry) ([]model.HistoryEntry, bool)) ([]model.HistoryEntry, error) {
	key := linkHistoryPrefix + client
	var result []model.HistoryEntry
	txf := func(tx *redis.Tx) error {
		items, err := readLinkHistory(ctx, tx, key)
		if err != nil {
			return err
		}
		updated, changed := fn(items)
		result = updated
		if !changed {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.writeLinkHistory(ctx, pipe, key, updated)
		})
		return err
	}

	for i := 0; i < maxHistoryRetries; i++ {
		err := s.Client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("link history of %s: %w", client, redis.TxFailedErr)
}

func readLinkHistory(ctx context.Context, rdb redis.Cmdable, key string) ([]model.HistoryEntry, error) {
	val, err := rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]model.HistoryEntry, 0, len(val))
	for _, v := range val {
		var entry model.HistoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *Storage) writeLinkHistory(ctx context.Context, pipe redis.Pipeliner, key string, items []model.HistoryEntry) error {
	pipe.Del(ctx, key)
	if len(items) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return err
		}
		values = append(values, string(b))
	}
	pipe.RPush(ctx, key, values...)
	if s.HistoryTTL > 0 {
		pipe.Expire(ctx, key, s.HistoryTTL)
	}
	return nil
}

func (s *Storage) GetWatchedDomains(ctx context.Context) ([]string, error) {
	return s.Client.LRange(ctx, watchedKey, 0, -1).Result()
}

func (s *Storage) AddWatchedDomain(ctx context.Context, domain string) error {
	pipe := s.Client.TxPipeline()
	pipe.LRem(ctx, watchedKey, 0, domain)
	pipe.RPush(ctx, watchedKey, domain)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) RemoveWatchedDomain(ctx context.Context, domain string) error {
	return s.Client.LRem(ctx, watchedKey, 0, domain).Err()
}

// GetReportHistory returns the stored summaries of domain, newest first.
func (s *Storage) GetReportHistory(ctx context.Context, domain string) ([]model.ReportEntry, error) {
	val, err := s.Client.LRange(ctx, reportHistoryPrefix+domain, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var entries []model.ReportEntry
	for _, v := range val {
		var entry model.ReportEntry
		if err := json.Unmarshal([]byte(v), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// AddReportHistory stores summary unless it equals the latest entry.
// added is false when nothing was written.
func (s *Storage) AddReportHistory(ctx context.Context, domain, summary string) (added bool, err error) {
	key := reportHistoryPrefix + domain

	last, err := s.Client.LIndex(ctx, key, 0).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	if err == nil {
		var lastEntry model.ReportEntry
		if json.Unmarshal([]byte(last), &lastEntry) == nil && lastEntry.Summary == summary {
			return false, nil
		}
	}

	entry := model.ReportEntry{
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Summary:   summary,
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	pipe := s.Client.Pipeline()
	pipe.LPush(ctx, key, string(b))
	pipe.LTrim(ctx, key, 0, maxReportHistory-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// GetReportHistoryWithDiffs returns the entries of domain, newest first,
// and for each entry but the oldest the unified diff from its predecessor.
func (s *Storage) GetReportHistoryWithDiffs(ctx context.Context, domain string) ([]model.ReportEntry, []string, error) {
	entries, err := s.GetReportHistory(ctx, domain)
	if err != nil {
		return nil, nil, err
	}
	var diffs []string
	for i := 0; i+1 < len(entries); i++ {
		older, newer := entries[i+1], entries[i]
		edits := myers.ComputeEdits(span.URIFromPath(domain), older.Summary, newer.Summary)
		unified := gotextdiff.ToUnified(older.Timestamp, newer.Timestamp, older.Summary, edits)
		diffs = append(diffs, fmt.Sprint(unified))
	}
	return entries, diffs, nil
}

func (s *Storage) GetCache(ctx context.Context, key string) (string, error) {
	return s.Client.Get(ctx, key).Result()
}

func (s *Storage) SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	val, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, key, val, expiration).Err()
}

// GetReport returns a cached report, or nil when there is none.
func (s *Storage) GetReport(ctx context.Context, key string) (*model.Report, error) {
	val, err := s.GetCache(ctx, reportCachePrefix+key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report model.Report
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Storage) SetReport(ctx context.Context, key string, report *model.Report, ttl time.Duration) error {
	return s.SetCache(ctx, reportCachePrefix+key, report, ttl)
}
