// Package meta walks every table of the cluster, collects its DDL,
// partitions and tablets, and stream-loads them into metadata tables.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nucleus/doris-core/internal/config"
	"github.com/nucleus/doris-core/internal/ddl"
	"github.com/nucleus/doris-core/internal/logger"
	"github.com/nucleus/doris-core/internal/session"
	"github.com/nucleus/doris-core/internal/streamload"
)

const (
	tableTypeView   = "VIEW"
	updateTimeStyle = "2006-01-02 15:04:05"
)

const catalogQuery = "SELECT table_schema AS database_name, table_name, table_type " +
	"FROM information_schema.tables " +
	"WHERE table_type NOT IN ('SYSTEM VIEW') " +
	"ORDER BY 1, 3, 2"

// Loader is the stream load surface the harvester writes through.
// Database names where loaded rows land; the harvester's own DDL targets
// the same database.
type Loader interface {
	Database() string
	Load(ctx context.Context, table string, batch []streamload.Record, opts streamload.Options) (*streamload.LoadResult, error)
}

// Targets names the tables harvested rows land in.
type Targets struct {
	Table     string
	Partition string
	Tablet    string
}

// Options tune a Harvester.
type Options struct {
	Targets Targets
	// FlushRows bounds a partition or tablet batch.
	FlushRows int
	// IncludeViews keeps views in the table listing.
	IncludeViews bool
	// ReplicationNum is used when creating the target tables.
	ReplicationNum int
	Logger         logger.Logger
}

// Harvester collects cluster metadata.
type Harvester struct {
	q      session.Querier
	loader Loader
	opts   Options
	log    logger.Logger
	now    func() time.Time
}

// CatalogEntry is one row of the catalog listing.
type CatalogEntry struct {
	Database string
	Table    string
	Type     string
}

// IsView reports whether the entry is a view.
func (c CatalogEntry) IsView() bool { return c.Type == tableTypeView }

// NewHarvester returns a Harvester reading through q and writing through
// loader.
func NewHarvester(q session.Querier, loader Loader, opts Options) *Harvester {
	if opts.Targets.Table == "" {
		opts.Targets.Table = DefaultTableTarget
	}
	if opts.Targets.Partition == "" {
		opts.Targets.Partition = DefaultPartitionTarget
	}
	if opts.Targets.Tablet == "" {
		opts.Targets.Tablet = DefaultTabletTarget
	}
	if opts.FlushRows <= 0 {
		opts.FlushRows = config.DefaultMetaFlushRows
	}
	if opts.ReplicationNum <= 0 {
		opts.ReplicationNum = 3
	}
	return &Harvester{
		q:      q,
		loader: loader,
		opts:   opts,
		log:    logger.OrDefault(opts.Logger).WithPrefix("meta"),
		now:    time.Now,
	}
}

// CreateTables creates the three target tables when missing.
func (h *Harvester) CreateTables(ctx context.Context) error {
	db := h.loader.Database()
	stmts := []string{
		createStatement(db, h.opts.Targets.Table, tableColumns, "meta of tables and views", "", h.opts.ReplicationNum),
		createStatement(db, h.opts.Targets.Partition, partitionColumns, "meta of table partitions", "", h.opts.ReplicationNum),
		createStatement(db, h.opts.Targets.Tablet, tabletColumns, "meta of table tablets", "database_name", h.opts.ReplicationNum),
	}
	for _, stmt := range stmts {
		if err := h.q.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Catalog lists every table and view outside the system schemas.
func (h *Harvester) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	rows, err := h.q.Read(ctx, catalogQuery, session.NamedRows)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0, rows.Len())
	for _, r := range rows.Named {
		out = append(out, CatalogEntry{
			Database: session.String(r["database_name"]),
			Table:    session.String(r["table_name"]),
			Type:     session.String(r["table_type"]),
		})
	}
	return out, nil
}

// CollectTables replaces the contents of the table target with one row per
// catalog entry. A table whose DDL cannot be read is still listed, with
// empty detail columns.
func (h *Harvester) CollectTables(ctx context.Context) (int, error) {
	entries, err := h.Catalog(ctx)
	if err != nil {
		return 0, err
	}

	var batch []streamload.Record
	for _, e := range entries {
		if e.IsView() && !h.opts.IncludeViews {
			continue
		}
		batch = append(batch, h.describe(ctx, e))
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := h.truncate(ctx, h.opts.Targets.Table); err != nil {
		return 0, err
	}
	if err := h.flush(ctx, h.opts.Targets.Table, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (h *Harvester) describe(ctx context.Context, e CatalogEntry) streamload.Record {
	row := streamload.Record{
		"database_name":   e.Database,
		"table_name":      e.Table,
		"table_type":      e.Type,
		"engine":          "",
		"model":           "",
		"replication_num": 0,
		"bucket_num":      0,
		"properties":      "",
		"ddl":             "",
		"update_time":     h.stamp(),
	}

	verb := "SHOW CREATE TABLE "
	if e.IsView() {
		verb = "SHOW CREATE VIEW "
	}
	rows, err := h.q.Read(ctx, verb+ddl.Qualified(e.Database, e.Table), session.PositionalRows)
	if err == nil && (rows.Len() == 0 || len(rows.Positional[0]) < 2) {
		err = fmt.Errorf("no DDL returned")
	}
	if err != nil {
		h.log.Warnf("%s.%s meta error: %v", e.Database, e.Table, err)
		return row
	}
	text := session.String(rows.Positional[0][1])
	row["ddl"] = text
	if e.IsView() {
		return row
	}

	desc := ddl.Describe(e.Table, text)
	row["engine"] = desc.Engine
	row["model"] = desc.Model
	row["replication_num"] = desc.ReplicationNum
	row["bucket_num"] = desc.Distribution.Buckets
	if len(desc.Properties) > 0 {
		props, _ := json.Marshal(desc.Properties)
		row["properties"] = string(props)
	}
	return row
}

// CollectPartitions replaces the partition target with SHOW PARTITIONS of
// every base table.
func (h *Harvester) CollectPartitions(ctx context.Context) (int, error) {
	return h.collect(ctx, h.opts.Targets.Partition, "SHOW PARTITIONS FROM ")
}

// CollectTablets replaces the tablet target with SHOW TABLETS of every base
// table.
func (h *Harvester) CollectTablets(ctx context.Context) (int, error) {
	return h.collect(ctx, h.opts.Targets.Tablet, "SHOW TABLETS FROM ")
}

func (h *Harvester) collect(ctx context.Context, target, verb string) (int, error) {
	entries, err := h.Catalog(ctx)
	if err != nil {
		return 0, err
	}
	if err := h.truncate(ctx, target); err != nil {
		return 0, err
	}

	total := 0
	var batch []streamload.Record
	for _, e := range entries {
		if e.IsView() {
			continue
		}
		rows, err := h.q.Read(ctx, verb+ddl.Qualified(e.Database, e.Table), session.NamedRows)
		if err != nil {
			h.log.Warnf("%s.%s meta error: %v", e.Database, e.Table, err)
			continue
		}
		stamp := h.stamp()
		for _, item := range rows.Named {
			item["database_name"] = e.Database
			item["table_name"] = e.Table
			item["update_time"] = stamp
			batch = append(batch, item)
		}
		if len(batch) >= h.opts.FlushRows {
			if err := h.flush(ctx, target, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = nil
		}
	}
	if len(batch) > 0 {
		if err := h.flush(ctx, target, batch); err != nil {
			return total, err
		}
		total += len(batch)
	}
	return total, nil
}

func (h *Harvester) truncate(ctx context.Context, target string) error {
	return h.q.Execute(ctx, "TRUNCATE TABLE "+ddl.Qualified(h.loader.Database(), target))
}

func (h *Harvester) flush(ctx context.Context, target string, batch []streamload.Record) error {
	res, err := h.loader.Load(ctx, target, batch, streamload.Options{})
	if err != nil {
		return fmt.Errorf("load %d rows into %s: %w", len(batch), target, err)
	}
	h.log.Infof("loaded %d rows into %s (label %s)", len(batch), target, res.Label)
	return nil
}

func (h *Harvester) stamp() string {
	return h.now().Format(updateTimeStyle)
}
