package streamload

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nucleus/doris-core/internal/core"
)

// Record is one row of a batch, keyed by column name.
type Record = map[string]any

// MergeType selects how a load applies to a unique-key table.
type MergeType string

const (
	MergeAppend MergeType = "APPEND"
	MergeDelete MergeType = "DELETE"
	MergeMerge  MergeType = "MERGE"
)

// Options tune a single Load call. The zero value appends.
type Options struct {
	// SequenceColumn orders updates on unique-key tables.
	SequenceColumn string
	// MergeType is sent as merge_type when set.
	MergeType MergeType
	// DeleteCondition is sent as delete; meaningful with MergeMerge.
	DeleteCondition string
	// Columns overrides the column list derived from the first record.
	Columns []string
	// Label is reused across attempts when set. Otherwise every attempt
	// gets a fresh label.
	Label string
}

// Validate checks the option combination.
func (o Options) Validate() error {
	switch o.MergeType {
	case "", MergeAppend, MergeDelete, MergeMerge:
	default:
		return core.Configurationf("unknown merge type %q", o.MergeType)
	}
	if o.DeleteCondition != "" && o.MergeType != MergeMerge {
		return core.Configurationf("delete condition requires merge type %s", MergeMerge)
	}
	return nil
}

// Columns derives the column list of a batch: the sorted keys of the first
// record. Every record must carry the same key set.
func Columns(batch []Record) ([]string, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	cols := make([]string, 0, len(batch[0]))
	for k := range batch[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	if len(cols) == 0 {
		return nil, core.Configurationf("first record has no columns")
	}

	for i, rec := range batch[1:] {
		if len(rec) != len(cols) {
			return nil, core.Configurationf("record %d has %d columns, expected %d", i+1, len(rec), len(cols))
		}
		for _, c := range cols {
			if _, ok := rec[c]; !ok {
				return nil, core.Configurationf("record %d is missing column %q", i+1, c)
			}
		}
	}
	return cols, nil
}

// ColumnsHeader renders the columns header value.
func ColumnsHeader(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = "`" + c + "`"
	}
	return strings.Join(quoted, ",")
}

// NewLabel returns <table>_<YYYYMMDD_HHMMSS>_<8 hex>.
func NewLabel(table string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", table, now.Format("20060102_150405"), suffix)
}
