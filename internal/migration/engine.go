// Package migration changes the distribution key or bucket count of a table
// or a single partition online, by copying into a shadow object, checking
// row counts and swapping atomically.
package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/nucleus/doris-core/internal/config"
	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/ddl"
	"github.com/nucleus/doris-core/internal/logger"
	"github.com/nucleus/doris-core/internal/session"
)

// ShadowSuffix is appended to the table or partition name of the copy.
const ShadowSuffix = "_tmp"

// Status is the outcome of a Modify call.
type Status string

const (
	StatusApplied        Status = "applied"
	StatusNoOp           Status = "no-op"
	StatusSkippedMissing Status = "skipped-missing"
	StatusFailed         Status = "failed"
)

// Scope is what a plan rewrites.
type Scope string

const (
	ScopeTable     Scope = "whole-table"
	ScopePartition Scope = "partition"
)

// Request describes the wanted layout. An empty DistributionKey keeps the
// current key; Buckets 0 sizes the target from the current data volume.
type Request struct {
	Database        string
	Table           string
	Partition       string
	DistributionKey string
	Buckets         int
}

// Validate checks required fields and identifier syntax.
func (r Request) Validate() error {
	if r.Database == "" || r.Table == "" {
		return core.Configurationf("database and table cannot be empty")
	}
	if r.Buckets < 0 {
		return core.Configurationf("buckets must be a positive integer, got %d", r.Buckets)
	}
	if err := ddl.ValidateIdentifier("database", r.Database); err != nil {
		return err
	}
	if err := ddl.ValidateIdentifier("table", r.Table); err != nil {
		return err
	}
	if r.Partition != "" {
		if err := ddl.ValidateIdentifier("partition", r.Partition); err != nil {
			return err
		}
	}
	if r.DistributionKey != "" {
		spec := ddl.ParseKey(r.DistributionKey)
		if spec.IsZero() {
			return core.Configurationf("invalid distribution key %q", r.DistributionKey)
		}
		for _, col := range spec.Columns {
			if err := ddl.ValidateIdentifier("distribution column", col); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r Request) label() string {
	if r.Partition != "" {
		return fmt.Sprintf("%s [%s]", r.Table, r.Partition)
	}
	return r.Table
}

// Plan is the resolved change.
type Plan struct {
	Scope      Scope
	Source     ddl.DistributionSpec
	Target     ddl.DistributionSpec
	ShadowName string
}

// Outcome reports what Modify did. Warnings hold skipped or ignored parts of
// the request.
type Outcome struct {
	Status   Status
	Reason   string
	Plan     *Plan
	Warnings []string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger injects the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithBucketUnit sets the data volume that earns one bucket.
func WithBucketUnit(bytes int64) Option {
	return func(e *Engine) {
		if bytes > 0 {
			e.bucketUnit = bytes
		}
	}
}

// Engine runs re-bucketing migrations over a Querier. Descriptors are read
// fresh on every call; the engine keeps no state between calls.
type Engine struct {
	q          session.Querier
	checker    *Checker
	log        logger.Logger
	bucketUnit int64
}

// NewEngine returns an Engine issuing statements through q.
func NewEngine(q session.Querier, opts ...Option) *Engine {
	e := &Engine{q: q, bucketUnit: config.DefaultBucketUnit}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logger.OrDefault(e.log).WithPrefix("migration")
	e.checker = NewChecker(q, e.log)
	return e
}

// BucketsForSize returns ceil(bytes/unit), never less than 1.
func BucketsForSize(bytes, unit int64) int {
	if unit <= 0 {
		unit = config.DefaultBucketUnit
	}
	if bytes <= 0 {
		return 1
	}
	n := (bytes + unit - 1) / unit
	if n < 1 {
		return 1
	}
	return int(n)
}

// Modify applies req. Skippable conditions come back as a NoOp or
// SkippedMissing outcome with a nil error. Parse, execution and consistency
// failures return a Failed outcome together with the error; shadow objects
// created before the failure are left in place.
func (e *Engine) Modify(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	out := &Outcome{}
	fail := func(err error) (*Outcome, error) {
		out.Status = StatusFailed
		out.Reason = err.Error()
		e.log.Errorf("[%s] %v", req.label(), err)
		return out, err
	}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		out.Warnings = append(out.Warnings, msg)
		e.log.Warnf("[%s] %s", req.label(), msg)
	}

	if err := e.q.Execute(ctx, "USE "+ddl.Quote(req.Database)); err != nil {
		return fail(err)
	}
	createSQL, err := e.showCreateTable(ctx, req.Database, req.Table)
	if err != nil {
		return fail(err)
	}
	table, err := ddl.ParseTable(req.Table, createSQL)
	if err != nil {
		return fail(err)
	}

	plan := &Plan{Scope: ScopeTable, Source: table.Distribution, ShadowName: req.Table + ShadowSuffix}
	var partition *ddl.PartitionDescriptor
	if req.Partition != "" {
		partition, err = e.partition(ctx, req.Database, req.Table, req.Partition)
		if err != nil {
			return fail(err)
		}
		if partition == nil {
			warn("partition %s does not exist", req.Partition)
			out.Status = StatusSkippedMissing
			return out, nil
		}
		plan.Scope = ScopePartition
		plan.Source = partition.Distribution
		plan.ShadowName = req.Partition + ShadowSuffix
	}
	out.Plan = plan

	target := plan.Source
	if req.DistributionKey != "" {
		target = ddl.ParseKey(req.DistributionKey)
	}
	target.Buckets = req.Buckets
	if target.Buckets == 0 {
		// Partition scope is sized from the whole table too.
		size, err := e.tableSize(ctx, req.Database, req.Table)
		if err != nil {
			return fail(err)
		}
		if partition != nil {
			e.log.Debugf("[%s] partition holds %d of %d bytes", req.label(), partition.DataSizeBytes, size)
		}
		target.Buckets = BucketsForSize(size, e.bucketUnit)
	}

	if target.SameKey(plan.Source) && target.Buckets == plan.Source.Buckets {
		warn("nothing changed")
		out.Status = StatusNoOp
		plan.Target = target
		return out, nil
	}
	if plan.Scope == ScopePartition && !target.SameKey(plan.Source) {
		warn("partition does not support modifying the distribution key, keeping %s", plan.Source.Clause())
		target.Columns, target.Random = plan.Source.Columns, plan.Source.Random
		if target.Buckets == plan.Source.Buckets {
			warn("nothing changed")
			out.Status = StatusNoOp
			plan.Target = target
			return out, nil
		}
	}
	plan.Target = target

	if plan.Scope == ScopeTable {
		err = e.swapTable(ctx, req, table, target)
	} else {
		err = e.swapPartition(ctx, req, table, target)
	}
	if err != nil {
		return fail(err)
	}

	e.log.Infof("[%s] (%s) >> (%s)", req.label(), plan.Source, plan.Target)
	e.log.Infof("[%s] changed success", req.label())
	out.Status = StatusApplied
	return out, nil
}

func (e *Engine) swapTable(ctx context.Context, req Request, table *ddl.TableDescriptor, target ddl.DistributionSpec) error {
	shadow := req.Table + ShadowSuffix

	createSQL, err := ddl.RenameCreateTable(table.DDL, req.Database, shadow)
	if err != nil {
		return err
	}
	if createSQL, err = ddl.RewriteDistribution(createSQL, target); err != nil {
		return err
	}
	createSQL = ddl.RewriteDynamicBuckets(createSQL, target.Buckets)

	e.log.Infof("[%s] create table %s", req.label(), shadow)
	if err := e.q.Execute(ctx, createSQL); err != nil {
		return err
	}
	e.log.Infof("[%s] insert into %s", req.label(), shadow)
	insert := fmt.Sprintf("INSERT INTO %s SELECT * FROM %s",
		ddl.Qualified(req.Database, shadow), ddl.Qualified(req.Database, req.Table))
	if err := e.q.Execute(ctx, insert); err != nil {
		return err
	}
	e.log.Infof("[%s] check the number of records in two tables", req.label())
	if err := e.checker.Check(ctx, req.label(), TableObject(req.Database, req.Table), TableObject(req.Database, shadow)); err != nil {
		return err
	}
	e.log.Infof("[%s] replace %s with %s", req.label(), req.Table, shadow)
	replace := fmt.Sprintf("ALTER TABLE %s REPLACE WITH TABLE %s PROPERTIES('swap' = 'false')",
		ddl.Qualified(req.Database, req.Table), ddl.Quote(shadow))
	return e.q.Execute(ctx, replace)
}

func (e *Engine) swapPartition(ctx context.Context, req Request, table *ddl.TableDescriptor, target ddl.DistributionSpec) error {
	tmp := req.Partition + ShadowSuffix

	values, err := ddl.PartitionValues(table.DDL, req.Partition)
	if err != nil {
		return err
	}
	qualified := ddl.Qualified(req.Database, req.Table)

	e.log.Infof("[%s] create temporary partition %s", req.label(), tmp)
	add := fmt.Sprintf("ALTER TABLE %s ADD TEMPORARY PARTITION %s %s %s",
		qualified, ddl.Quote(tmp), values, target)
	if err := e.q.Execute(ctx, add); err != nil {
		return err
	}
	e.log.Infof("[%s] insert into %s", req.label(), tmp)
	original := PartitionObject(req.Database, req.Table, req.Partition)
	shadow := TempPartitionObject(req.Database, req.Table, tmp)
	insert := fmt.Sprintf("INSERT INTO %s TEMPORARY PARTITION (%s) SELECT * FROM %s",
		qualified, ddl.Quote(tmp), original)
	if err := e.q.Execute(ctx, insert); err != nil {
		return err
	}
	e.log.Infof("[%s] check the number of records in two partitions", req.label())
	if err := e.checker.Check(ctx, req.label(), original, shadow); err != nil {
		return err
	}
	replace := fmt.Sprintf("ALTER TABLE %s REPLACE PARTITION (%s) WITH TEMPORARY PARTITION (%s)",
		qualified, ddl.Quote(req.Partition), ddl.Quote(tmp))
	return e.q.Execute(ctx, replace)
}

func (e *Engine) showCreateTable(ctx context.Context, database, table string) (string, error) {
	rows, err := e.q.Read(ctx, "SHOW CREATE TABLE "+ddl.Qualified(database, table), session.NamedRows)
	if err != nil {
		return "", err
	}
	if rows.Len() == 0 {
		return "", core.Parsef("no DDL returned for %s.%s", database, table)
	}
	text := session.String(rows.Named[0]["Create Table"])
	if text == "" {
		return "", core.Parsef("%s.%s is not a table", database, table)
	}
	return text, nil
}

// partition returns nil when the partition does not exist.
func (e *Engine) partition(ctx context.Context, database, table, name string) (*ddl.PartitionDescriptor, error) {
	query := fmt.Sprintf("SHOW PARTITIONS FROM %s WHERE PartitionName='%s'", ddl.Qualified(database, table), name)
	rows, err := e.q.Read(ctx, query, session.NamedRows)
	if err != nil {
		return nil, err
	}
	if rows.Len() == 0 {
		return nil, nil
	}
	row := rows.Named[0]

	spec := ddl.ParseKey(session.String(row["DistributionKey"]))
	if spec.IsZero() {
		return nil, core.Parsef("partition %s of %s.%s has no distribution key", name, database, table)
	}
	buckets, err := session.Int(row["Buckets"])
	if err != nil {
		return nil, core.Parsef("partition %s buckets: %v", name, err)
	}
	spec.Buckets = int(buckets)

	desc := &ddl.PartitionDescriptor{
		Name:         name,
		Distribution: spec,
		Values:       session.String(row["Range"]),
	}
	if size, err := ddl.ParseSize(session.String(row["DataSize"])); err == nil {
		desc.DataSizeBytes = size
	}
	return desc, nil
}

func (e *Engine) tableSize(ctx context.Context, database, table string) (int64, error) {
	rows, err := e.q.Read(ctx, "SHOW DATA FROM "+ddl.Qualified(database, table), session.NamedRows)
	if err != nil {
		return 0, err
	}
	if rows.Len() == 0 {
		return 0, core.Parsef("SHOW DATA returned nothing for %s.%s", database, table)
	}
	raw := session.String(rows.Named[0]["Size"])
	size, err := ddl.ParseSize(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return size, nil
}
