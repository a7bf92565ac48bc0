package ddl

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nucleus/doris-core/internal/core"
)

var (
	createTableRe = regexp.MustCompile("(?is)^(\\s*CREATE\\s+(?:EXTERNAL\\s+)?TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?)((?:`[^`]+`|[\\w-]+)(?:\\.(?:`[^`]+`|[\\w-]+))?)")
	dynBucketsRe  = regexp.MustCompile(`"dynamic_partition\.buckets"\s*=\s*"\d+"`)
)

// RenameCreateTable rewrites the table name in the CREATE TABLE header to
// `database`.`name`. Only the header is touched; column names that happen to
// contain the old table name are left alone.
func RenameCreateTable(ddl, database, name string) (string, error) {
	loc := createTableRe.FindStringSubmatchIndex(ddl)
	if loc == nil {
		return "", core.Parsef("CREATE TABLE header not found")
	}
	target := Quote(name)
	if database != "" {
		target = Quote(database) + "." + target
	}
	return ddl[:loc[4]] + target + ddl[loc[5]:], nil
}

// RewriteDistribution replaces the DISTRIBUTED BY clause with spec.
func RewriteDistribution(ddl string, spec DistributionSpec) (string, error) {
	loc := distributionRe.FindStringIndex(ddl)
	if loc == nil {
		return "", core.Parsef("DISTRIBUTED BY ... BUCKETS <n> clause not found")
	}
	return ddl[:loc[0]] + spec.String() + ddl[loc[1]:], nil
}

// RewriteDynamicBuckets sets "dynamic_partition.buckets" to n when present.
func RewriteDynamicBuckets(ddl string, n int) string {
	repl := `"dynamic_partition.buckets" = "` + strconv.Itoa(n) + `"`
	return dynBucketsRe.ReplaceAllLiteralString(ddl, repl)
}

// PartitionValues returns the value clause of a named partition, for example
// "VALUES [('2024-01-01'), ('2024-02-01'))" or `VALUES IN ("cn","us")`.
// Brackets inside quoted literals are ignored.
func PartitionValues(ddl, partition string) (string, error) {
	re, err := regexp.Compile("(?i)PARTITION\\s+`?" + regexp.QuoteMeta(partition) + "`?\\s+(VALUES\\b)")
	if err != nil {
		return "", core.Parsef("invalid partition name %q", partition)
	}
	loc := re.FindStringSubmatchIndex(ddl)
	if loc == nil {
		return "", core.Parsef("partition %s not found in DDL", partition)
	}
	start := loc[2]
	end, ok := balancedEnd(ddl, start)
	if !ok {
		return "", core.Parsef("unterminated value range for partition %s", partition)
	}
	return strings.TrimSpace(ddl[start:end]), nil
}

// balancedEnd scans from start to the point where the first bracket group
// closes. Doris range bounds mix bracket kinds ("[a, b)"), so ( and [ open,
// ) and ] close, regardless of kind.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	opened := false
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
			opened = true
		case ')', ']':
			depth--
			if opened && depth == 0 {
				return i + 1, true
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}
