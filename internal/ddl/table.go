package ddl

import (
	"regexp"
	"strconv"
)

var (
	engineRe     = regexp.MustCompile(`ENGINE\s*=\s*(\w+)`)
	modelRe      = regexp.MustCompile(`(?m)^\s*(\w+)\s+KEY\s*\(`)
	replAllocRe  = regexp.MustCompile(`"replication_allocation"\s*=\s*"[^"]*?(\d+)\s*"`)
	replNumRe    = regexp.MustCompile(`"replication_num"\s*=\s*"(\d+)"`)
	propertiesRe = regexp.MustCompile(`(?s)PROPERTIES\s*\((.*)\)`)
	propertyRe   = regexp.MustCompile(`"([^"]+)"\s*=\s*"([^"]*)"`)
)

// TableDescriptor is the parsed view of SHOW CREATE TABLE output.
type TableDescriptor struct {
	Name           string
	Distribution   DistributionSpec
	DDL            string
	Engine         string
	Model          string
	ReplicationNum int
	Properties     map[string]string
}

// PartitionDescriptor is the parsed view of one SHOW PARTITIONS row.
type PartitionDescriptor struct {
	Name          string
	Distribution  DistributionSpec
	Values        string
	DataSizeBytes int64
}

// ParseTable parses the distribution clause (required) and the descriptive
// attributes (best effort) of a CREATE TABLE statement.
func ParseTable(name, ddl string) (*TableDescriptor, error) {
	dist, err := ParseDistribution(ddl)
	if err != nil {
		return nil, err
	}
	desc := Describe(name, ddl)
	desc.Distribution = dist
	return desc, nil
}

// Describe extracts engine, key model, replication number and properties
// without requiring a distribution clause, so views and external tables can
// still be catalogued.
func Describe(name, ddl string) *TableDescriptor {
	desc := &TableDescriptor{Name: name, DDL: ddl, Properties: map[string]string{}}
	if m := engineRe.FindStringSubmatch(ddl); m != nil {
		desc.Engine = m[1]
	}
	if m := modelRe.FindStringSubmatch(ddl); m != nil {
		desc.Model = m[1]
	}
	if m := replAllocRe.FindStringSubmatch(ddl); m != nil {
		desc.ReplicationNum, _ = strconv.Atoi(m[1])
	} else if m := replNumRe.FindStringSubmatch(ddl); m != nil {
		desc.ReplicationNum, _ = strconv.Atoi(m[1])
	}
	if dist, err := ParseDistribution(ddl); err == nil {
		desc.Distribution = dist
	}
	if m := propertiesRe.FindStringSubmatch(ddl); m != nil {
		for _, kv := range propertyRe.FindAllStringSubmatch(m[1], -1) {
			desc.Properties[kv[1]] = kv[2]
		}
	}
	return desc
}
