// Package session owns the single MySQL-protocol connection to a cluster
// front-end and the basic-auth credential reused by the stream load client.
package session

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/logger"
)

// DefaultSQLPort is the front-end MySQL protocol port.
const DefaultSQLPort = 9030

// Querier is the statement surface the migration engine and the metadata
// harvester depend on.
type Querier interface {
	Execute(ctx context.Context, stmt string) error
	Read(ctx context.Context, query string, form RowForm) (*Rows, error)
}

// Config identifies the cluster and the account used for SQL and HTTP.
type Config struct {
	// Frontends are "host:http_port" strings; the first also serves SQL.
	Frontends []string
	Database  string
	User      string
	Password  string
	SQLPort   int
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger injects the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithOpener replaces the function that opens the database handle.
func WithOpener(open func(dsn string) (*sql.DB, error)) Option {
	return func(s *Session) { s.open = open }
}

// Session holds endpoints, credentials and one lazily opened connection.
type Session struct {
	endpoints []core.Endpoint
	database  string
	dsn       string
	auth      string
	log       logger.Logger
	open      func(dsn string) (*sql.DB, error)

	mu sync.Mutex
	db *sql.DB
}

var _ Querier = (*Session)(nil)

// New validates cfg and prepares a session. No connection is made yet.
func New(cfg Config, opts ...Option) (*Session, error) {
	switch {
	case len(cfg.Frontends) == 0:
		return nil, core.Configurationf("at least one front-end endpoint is required")
	case cfg.Database == "":
		return nil, core.Configurationf("database is required")
	case cfg.User == "":
		return nil, core.Configurationf("user is required")
	case cfg.Password == "":
		return nil, core.Configurationf("password is required")
	}
	endpoints, err := core.ParseEndpoints(cfg.Frontends)
	if err != nil {
		return nil, err
	}
	port := cfg.SQLPort
	if port == 0 {
		port = DefaultSQLPort
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(endpoints[0].Host, strconv.Itoa(port))
	mc.DBName = cfg.Database

	s := &Session{
		endpoints: endpoints,
		database:  cfg.Database,
		dsn:       mc.FormatDSN(),
		auth:      "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.User+":"+cfg.Password)),
		open:      openMySQL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log)
	return s, nil
}

// With opens a session, hands it to fn and always closes it afterwards.
func With(ctx context.Context, cfg Config, fn func(ctx context.Context, s *Session) error, opts ...Option) error {
	s, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func openMySQL(dsn string) (*sql.DB, error) {
	return sql.Open("mysql", dsn)
}

// Endpoints returns the front-end endpoints in probe order.
func (s *Session) Endpoints() []core.Endpoint {
	return append([]core.Endpoint(nil), s.endpoints...)
}

// Database returns the target schema name.
func (s *Session) Database() string { return s.database }

// AuthHeader returns the precomputed "Basic ..." Authorization value.
func (s *Session) AuthHeader() string { return s.auth }

// connect opens the handle on first use. The pool is pinned to one
// connection so session state such as USE survives between statements.
func (s *Session) connect(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	db, err := s.open(s.dsn)
	if err != nil {
		return nil, core.Execution("connect", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, core.Execution("connect", err)
	}
	s.log.Debugf("connected to %s/%s", s.endpoints[0].Host, s.database)
	s.db = db
	return db, nil
}

// Execute runs a statement in autocommit mode.
func (s *Session) Execute(ctx context.Context, stmt string) error {
	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return core.Execution(stmt, err)
	}
	return nil
}

// Read runs a query and returns every row in the requested form.
func (s *Session) Read(ctx context.Context, query string, form RowForm) (*Rows, error) {
	db, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, core.Execution(query, err)
	}
	defer rows.Close()

	out, err := scanRows(rows, form)
	if err != nil {
		return nil, core.Execution(query, err)
	}
	return out, nil
}

// Close releases the connection. Errors are ignored; the session can be
// reused and will reconnect on demand.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Debugf("close connection: %v", err)
	}
	s.db = nil
	return nil
}

func (s *Session) String() string {
	return fmt.Sprintf("session(%s/%s)", s.endpoints[0], s.database)
}
