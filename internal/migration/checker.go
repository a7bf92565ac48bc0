package migration

import (
	"context"
	"fmt"

	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/ddl"
	"github.com/nucleus/doris-core/internal/logger"
	"github.com/nucleus/doris-core/internal/session"
)

// Object is a table, one of its partitions, or one of its temporary
// partitions.
type Object struct {
	Database  string
	Table     string
	Partition string
	Temporary bool
}

// TableObject names a whole table.
func TableObject(database, table string) Object {
	return Object{Database: database, Table: table}
}

// PartitionObject names a regular partition.
func PartitionObject(database, table, partition string) Object {
	return Object{Database: database, Table: table, Partition: partition}
}

// TempPartitionObject names a temporary partition.
func TempPartitionObject(database, table, partition string) Object {
	return Object{Database: database, Table: table, Partition: partition, Temporary: true}
}

// String renders the object as a FROM target.
func (o Object) String() string {
	s := ddl.Qualified(o.Database, o.Table)
	switch {
	case o.Partition == "":
		return s
	case o.Temporary:
		return s + " TEMPORARY PARTITION (" + ddl.Quote(o.Partition) + ")"
	default:
		return s + " PARTITION (" + ddl.Quote(o.Partition) + ")"
	}
}

// Checker gates a swap on equal row counts.
type Checker struct {
	q   session.Querier
	log logger.Logger
}

// NewChecker returns a Checker reading through q.
func NewChecker(q session.Querier, log logger.Logger) *Checker {
	return &Checker{q: q, log: logger.OrDefault(log)}
}

// CountQuery returns the statement whose result has exactly one row when
// both objects hold the same number of rows.
func CountQuery(original, shadow Object) string {
	return fmt.Sprintf(
		"SELECT DISTINCT ct FROM (SELECT COUNT(1) AS ct FROM %s UNION ALL SELECT COUNT(1) AS ct FROM %s) s",
		original, shadow,
	)
}

// Check returns a consistency error unless original and shadow have the
// same row count. label only tags log lines.
func (c *Checker) Check(ctx context.Context, label string, original, shadow Object) error {
	query := CountQuery(original, shadow)
	rows, err := c.q.Read(ctx, query, session.NamedRows)
	if err != nil {
		return err
	}
	if rows.Len() == 1 {
		c.log.Infof("[%s] check pass: %s and %s hold %s rows", label, original, shadow, session.String(rows.Named[0]["ct"]))
		return nil
	}

	counts := make([]string, 0, rows.Len())
	for _, r := range rows.Named {
		counts = append(counts, session.String(r["ct"]))
	}
	c.log.Errorf("[%s] check fail: %s", label, query)
	return core.Consistencyf("%s: row counts of %s and %s differ %v", label, original, shadow, counts)
}
