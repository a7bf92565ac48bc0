// Package spill persists what the stream load path cannot: a JSONL journal
// of load outcomes and Parquet archives of batches whose retries ran out.
package spill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nucleus/doris-core/internal/config"
	"github.com/nucleus/doris-core/internal/objectstore"
	"github.com/nucleus/doris-core/internal/streamload"
)

// Journal appends one JSONL object per load outcome under
// <prefix>/journal/<table>/.
type Journal struct {
	store  objectstore.Store
	bucket string
	prefix string
	now    func() time.Time
}

var _ streamload.Journal = (*Journal)(nil)

// NewJournal builds a journal over store.
func NewJournal(store objectstore.Store, bucket, prefix string) *Journal {
	if bucket == "" {
		bucket = config.DefaultSpillBucket
	}
	return &Journal{store: store, bucket: bucket, prefix: prefix, now: time.Now}
}

// Record writes entry as a single-line object.
func (j *Journal) Record(ctx context.Context, entry streamload.JournalEntry) error {
	if err := j.store.EnsureBucket(ctx, j.bucket); err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	label := entry.Label
	if label == "" {
		label = "unlabeled"
	}
	key := objectstore.JoinKey(j.prefix, "journal", entry.Table, fmt.Sprintf("%s-%d.jsonl", label, j.now().UnixNano()))
	return j.store.PutObject(ctx, j.bucket, key, append(line, '\n'))
}

// Entries reads back every entry recorded for table, oldest first.
func (j *Journal) Entries(ctx context.Context, table string) ([]streamload.JournalEntry, error) {
	keys, err := j.store.ListPrefix(ctx, j.bucket, objectstore.JoinKey(j.prefix, "journal", table)+"/")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	var out []streamload.JournalEntry
	for _, k := range keys {
		data, err := j.store.GetObject(ctx, j.bucket, k)
		if err != nil {
			return nil, err
		}
		for _, line := range bytes.Split(data, []byte("\n")) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var e streamload.JournalEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return nil, fmt.Errorf("decode %s: %w", k, err)
			}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Timestamp.Before(out[b].Timestamp) })
	return out, nil
}

// Prune deletes journal objects for table older than retentionDays. A
// non-positive retention keeps everything.
func (j *Journal) Prune(ctx context.Context, table string, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := j.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	keys, err := j.store.ListPrefix(ctx, j.bucket, objectstore.JoinKey(j.prefix, "journal", table)+"/")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, k := range keys {
		base := strings.TrimSuffix(path.Base(k), ".jsonl")
		i := strings.LastIndex(base, "-")
		if i < 0 {
			continue
		}
		ns, err := strconv.ParseInt(base[i+1:], 10, 64)
		if err != nil || !time.Unix(0, ns).Before(cutoff) {
			continue
		}
		if err := j.store.DeleteObject(ctx, j.bucket, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
