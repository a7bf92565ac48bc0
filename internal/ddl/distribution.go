package ddl

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nucleus/doris-core/internal/core"
)

// RandomKey is the sentinel for uniform random distribution.
const RandomKey = "RANDOM"

var (
	distributionRe = regexp.MustCompile(`(?is)DISTRIBUTED\s+BY\s+(.*?)\s+BUCKETS\s+(\d+)`)
	hashWrapperRe  = regexp.MustCompile(`(?is)^HASH\s*\((.*)\)$`)
)

// DistributionSpec is a hash key (or the random sentinel) plus a bucket count.
type DistributionSpec struct {
	Columns []string
	Random  bool
	Buckets int
}

// Key returns the normalized, case-folded key used for comparisons:
// "RANDOM" or the upper-cased comma list of columns.
func (d DistributionSpec) Key() string {
	if d.Random {
		return RandomKey
	}
	return strings.ToUpper(strings.Join(d.Columns, ","))
}

// SameKey compares distribution keys case-insensitively.
func (d DistributionSpec) SameKey(other DistributionSpec) bool {
	return d.Key() == other.Key()
}

// Clause renders the key as it appears after DISTRIBUTED BY.
func (d DistributionSpec) Clause() string {
	if d.Random {
		return RandomKey
	}
	quoted := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		quoted[i] = Quote(c)
	}
	return "HASH(" + strings.Join(quoted, ", ") + ")"
}

// String renders the full clause including the bucket count.
func (d DistributionSpec) String() string {
	return "DISTRIBUTED BY " + d.Clause() + " BUCKETS " + strconv.Itoa(d.Buckets)
}

// IsZero reports whether no key is set.
func (d DistributionSpec) IsZero() bool {
	return !d.Random && len(d.Columns) == 0
}

// ParseKey normalizes a distribution key expression. Accepted forms include
// "HASH(`a`, `b`)", "`a`,`b`", "a, b" and "random" in any case. An empty
// expression yields the zero spec.
func ParseKey(expr string) DistributionSpec {
	expr = strings.TrimSpace(strings.ReplaceAll(expr, "`", ""))
	if m := hashWrapperRe.FindStringSubmatch(expr); m != nil {
		expr = m[1]
	}
	if strings.EqualFold(strings.TrimSpace(expr), RandomKey) {
		return DistributionSpec{Random: true}
	}

	var cols []string
	for _, part := range strings.Split(expr, ",") {
		part = strings.Trim(strings.TrimSpace(part), "()")
		if part = strings.TrimSpace(part); part != "" {
			cols = append(cols, part)
		}
	}
	return DistributionSpec{Columns: cols}
}

// ParseDistribution extracts the distribution key and bucket count from a
// CREATE TABLE statement.
func ParseDistribution(ddl string) (DistributionSpec, error) {
	m := distributionRe.FindStringSubmatch(ddl)
	if m == nil {
		return DistributionSpec{}, core.Parsef("DISTRIBUTED BY ... BUCKETS <n> clause not found")
	}
	spec := ParseKey(m[1])
	if spec.IsZero() {
		return DistributionSpec{}, core.Parsef("empty distribution key in %q", m[0])
	}
	buckets, err := strconv.Atoi(m[2])
	if err != nil || buckets <= 0 {
		return DistributionSpec{}, core.Parsef("invalid bucket count in %q", m[0])
	}
	spec.Buckets = buckets
	return spec, nil
}
