package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/logger"
)

func testConfig() Config {
	return Config{
		Frontends: []string{"fe1:8030", "fe2:8030"},
		Database:  "ods",
		User:      "root",
		Password:  "pw",
	}
}

func newMockSession(t *testing.T) (*Session, sqlmock.Sqlmock, *int) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	opened := 0
	s, err := New(testConfig(),
		WithLogger(logger.NopLogger),
		WithOpener(func(dsn string) (*sql.DB, error) {
			opened++
			return db, nil
		}),
	)
	require.NoError(t, err)
	return s, mock, &opened
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no frontends", func(c *Config) { c.Frontends = nil }},
		{"no database", func(c *Config) { c.Database = "" }},
		{"no user", func(c *Config) { c.User = "" }},
		{"no password", func(c *Config) { c.Password = "" }},
		{"malformed frontend", func(c *Config) { c.Frontends = []string{"fe1"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.True(t, core.IsCode(err, core.CodeConfiguration), "got %v", err)
		})
	}
}

func TestNew_CredentialsAndDSN(t *testing.T) {
	s, err := New(testConfig(), WithLogger(logger.NopLogger))
	require.NoError(t, err)

	assert.Equal(t, "Basic cm9vdDpwdw==", s.AuthHeader())
	assert.Contains(t, s.dsn, "root:pw@tcp(fe1:9030)/ods")
	assert.Equal(t, "ods", s.Database())
	assert.Len(t, s.Endpoints(), 2)

	cfg := testConfig()
	cfg.SQLPort = 19030
	s, err = New(cfg, WithLogger(logger.NopLogger))
	require.NoError(t, err)
	assert.Contains(t, s.dsn, "tcp(fe1:19030)")
}

func TestSession_ExecuteConnectsOnce(t *testing.T) {
	s, mock, opened := newMockSession(t)
	ctx := context.Background()

	mock.ExpectExec("USE ods").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("TRUNCATE TABLE meta_table").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Execute(ctx, "USE ods"))
	require.NoError(t, s.Execute(ctx, "TRUNCATE TABLE meta_table"))
	assert.Equal(t, 1, *opened)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_ExecuteFailure(t *testing.T) {
	s, mock, _ := newMockSession(t)
	cause := errors.New("Unknown table 'missing'")
	mock.ExpectExec("INSERT INTO missing SELECT 1").WillReturnError(cause)

	err := s.Execute(context.Background(), "INSERT INTO missing SELECT 1")
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeExecution))
	assert.ErrorIs(t, err, cause)
}

func TestSession_ReadNamed(t *testing.T) {
	s, mock, _ := newMockSession(t)
	mock.ExpectQuery("SHOW DATA FROM ods.orders").WillReturnRows(
		sqlmock.NewRows([]string{"TableName", "Size", "ReplicaCount"}).
			AddRow("orders", []byte("1.500 GB"), int64(30)),
	)

	rows, err := s.Read(context.Background(), "SHOW DATA FROM ods.orders", NamedRows)
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	assert.Nil(t, rows.Positional)
	assert.Equal(t, "1.500 GB", rows.Named[0]["Size"])
	assert.Equal(t, int64(30), rows.Named[0]["ReplicaCount"])
}

func TestSession_ReadPositional(t *testing.T) {
	s, mock, _ := newMockSession(t)
	ddl := "CREATE TABLE `orders` (\n  `id` bigint\n) DISTRIBUTED BY HASH(`id`) BUCKETS 8"
	mock.ExpectQuery("SHOW CREATE TABLE ods.orders").WillReturnRows(
		sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow("orders", []byte(ddl)),
	)

	rows, err := s.Read(context.Background(), "SHOW CREATE TABLE ods.orders", PositionalRows)
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	assert.Nil(t, rows.Named)
	assert.Equal(t, ddl, rows.Positional[0][1])
	assert.Equal(t, []string{"Table", "Create Table"}, rows.Columns)
}

func TestSession_ReadFailure(t *testing.T) {
	s, mock, _ := newMockSession(t)
	mock.ExpectQuery("SHOW PARTITIONS FROM nope").WillReturnError(errors.New("no such table"))

	_, err := s.Read(context.Background(), "SHOW PARTITIONS FROM nope", NamedRows)
	assert.True(t, core.IsCode(err, core.CodeExecution))
}

func TestSession_CloseSwallowsErrors(t *testing.T) {
	s, mock, opened := newMockSession(t)
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose().WillReturnError(errors.New("already closed"))

	require.NoError(t, s.Execute(context.Background(), "SELECT 1"))
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, *opened)
}

func TestWith_AlwaysCloses(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	mock.ExpectExec("USE ods").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	opener := WithOpener(func(string) (*sql.DB, error) { return db, nil })
	boom := errors.New("caller failed")
	err = With(context.Background(), testConfig(), func(ctx context.Context, s *Session) error {
		if err := s.Execute(ctx, "USE ods"); err != nil {
			return err
		}
		return boom
	}, opener, WithLogger(logger.NopLogger))

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertHelpers(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "abc", String([]byte("abc")))
	assert.Equal(t, "12", String(int64(12)))

	for _, v := range []any{int64(8), 8, "8", []byte(" 8 "), float64(8)} {
		n, err := Int(v)
		require.NoError(t, err)
		assert.Equal(t, int64(8), n)
	}
	_, err := Int("eight")
	assert.Error(t, err)
}
