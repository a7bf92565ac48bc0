// Package doris is the public entry point: one Client per cluster session,
// exposing stream load, online re-bucketing and metadata harvesting.
package doris

import (
	"context"
	"net/http"

	"github.com/nucleus/doris-core/internal/config"
	"github.com/nucleus/doris-core/internal/logger"
	"github.com/nucleus/doris-core/internal/meta"
	"github.com/nucleus/doris-core/internal/migration"
	"github.com/nucleus/doris-core/internal/objectstore"
	"github.com/nucleus/doris-core/internal/retry"
	"github.com/nucleus/doris-core/internal/session"
	"github.com/nucleus/doris-core/internal/spill"
	"github.com/nucleus/doris-core/internal/streamload"
)

type (
	Config         = config.Config
	Record         = streamload.Record
	LoadOptions    = streamload.Options
	LoadResult     = streamload.LoadResult
	ModifyRequest  = migration.Request
	ModifyOutcome  = migration.Outcome
	MetaHarvester  = meta.Harvester
	LoadJournal    = spill.Journal
	JournalEntry   = streamload.JournalEntry
	MergeType      = streamload.MergeType
	ModifyStatus   = migration.Status
	HarvestOptions = meta.Options
)

// Option customizes a Client.
type Option func(*options)

type options struct {
	log       logger.Logger
	transport http.RoundTripper
	sessOpts  []session.Option
	store     objectstore.Store
}

// WithLogger injects the logger shared by every component.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithHTTPTransport replaces the stream load round tripper.
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithSessionOptions passes options to the underlying session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) { o.sessOpts = append(o.sessOpts, opts...) }
}

// WithObjectStore replaces the store chosen from the spill config.
func WithObjectStore(s objectstore.Store) Option {
	return func(o *options) { o.store = s }
}

// Client bundles a session with the components built on it.
type Client struct {
	cfg       *config.Config
	log       logger.Logger
	sess      *session.Session
	loader    *streamload.Loader
	engine    *migration.Engine
	harvester *meta.Harvester
	journal   *spill.Journal
}

// New validates cfg and builds a Client. No connection is made until the
// first statement.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	log := logger.OrDefault(o.log)

	sess, err := session.New(session.Config{
		Frontends: cfg.Cluster.Frontends,
		Database:  cfg.Cluster.Database,
		User:      cfg.Cluster.User,
		Password:  cfg.Cluster.Password,
		SQLPort:   cfg.Cluster.SQLPort,
	}, append([]session.Option{session.WithLogger(log)}, o.sessOpts...)...)
	if err != nil {
		return nil, err
	}

	loaderOpts := []streamload.LoaderOption{
		streamload.WithLogger(log),
		streamload.WithRetryPolicy(retry.Policy{
			MaxRetries: cfg.Retry.MaxRetries,
			Delay:      cfg.Retry.Delay,
		}),
		streamload.WithClientConfig(&streamload.ClientConfig{
			Timeout:   cfg.HTTP.Timeout,
			RateLimit: cfg.HTTP.RateLimit,
			RateBurst: cfg.HTTP.RateBurst,
			Transport: o.transport,
		}),
	}

	c := &Client{cfg: cfg, log: log, sess: sess}
	if cfg.Spill.Enabled || o.store != nil {
		store := o.store
		if store == nil {
			if store, err = objectstore.FromConfig(cfg.Spill); err != nil {
				return nil, err
			}
		}
		c.journal = spill.NewJournal(store, cfg.Spill.Bucket, cfg.Spill.Prefix)
		loaderOpts = append(loaderOpts,
			streamload.WithJournal(c.journal),
			streamload.WithSpill(spill.NewArchive(store, cfg.Spill.Bucket, cfg.Spill.Prefix)),
		)
	}

	c.loader = streamload.NewLoader(sess, loaderOpts...)
	c.engine = migration.NewEngine(sess,
		migration.WithLogger(log),
		migration.WithBucketUnit(cfg.Migration.BucketUnitBytes),
	)
	c.harvester = meta.NewHarvester(sess, c.loader, meta.Options{
		FlushRows:    cfg.Meta.FlushRows,
		IncludeViews: cfg.Meta.IncludeViews,
		Logger:       log,
	})
	return c, nil
}

// Load stream-loads batch into table of the configured database.
func (c *Client) Load(ctx context.Context, table string, batch []Record, opts LoadOptions) (*LoadResult, error) {
	return c.loader.Load(ctx, table, batch, opts)
}

// Modify changes the distribution of a table or partition.
func (c *Client) Modify(ctx context.Context, req ModifyRequest) (*ModifyOutcome, error) {
	if req.Database == "" {
		req.Database = c.cfg.Cluster.Database
	}
	return c.engine.Modify(ctx, req)
}

// Meta returns the metadata harvester.
func (c *Client) Meta() *MetaHarvester { return c.harvester }

// Journal returns the load journal, or nil when spilling is disabled.
func (c *Client) Journal() *LoadJournal { return c.journal }

// Session exposes the underlying session for ad-hoc statements.
func (c *Client) Session() *session.Session { return c.sess }

// Close releases the connection.
func (c *Client) Close() error { return c.sess.Close() }
