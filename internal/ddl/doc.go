// Package ddl extracts typed descriptors from the text the cluster returns
// for SHOW CREATE TABLE and SHOW PARTITIONS, and rewrites DDL for shadow
// tables.
//
// Structure:
//
//	distribution.go - DistributionSpec, key normalization, clause parsing
//	table.go        - TableDescriptor, PartitionDescriptor, property extraction
//	rewrite.go      - shadow DDL rewriting and partition value ranges
//	size.go         - human readable sizes ("1.5 GB") to bytes
//	ident.go        - identifier validation and quoting
package ddl
