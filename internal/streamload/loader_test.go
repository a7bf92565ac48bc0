package streamload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/logger"
	"github.com/nucleus/doris-core/internal/retry"
)

type fakeTarget struct {
	endpoints []core.Endpoint
}

func (f *fakeTarget) Endpoints() []core.Endpoint { return f.endpoints }
func (f *fakeTarget) Database() string           { return "ods" }
func (f *fakeTarget) AuthHeader() string         { return "Basic cm9vdDpwdw==" }

func endpointOf(t *testing.T, srv *httptest.Server) core.Endpoint {
	t.Helper()
	ep, err := core.ParseEndpoint(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return ep
}

// frontend answers every probe with a fixed status, redirecting to location
// when status is 307.
func frontend(t *testing.T, status int, location string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if status == http.StatusTemporaryRedirect {
			w.Header().Set("Location", location)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type captured struct {
	mu      sync.Mutex
	headers []http.Header
	bodies  [][]byte
}

func (c *captured) add(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = append(c.headers, r.Header.Clone())
	c.bodies = append(c.bodies, body)
}

func (c *captured) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.headers)
}

// coordinator replies with the given payload statuses in order, repeating
// the last one.
func coordinator(t *testing.T, got *captured, statuses ...string) *httptest.Server {
	t.Helper()
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.add(r)
		i := int(atomic.AddInt32(&n, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		status := statuses[i]
		if status == "HTTP500" {
			http.Error(w, "backend unavailable", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"TxnId":            42,
			"Label":            r.Header.Get("label"),
			"Status":           status,
			"Message":          "msg-" + status,
			"NumberTotalRows":  2,
			"NumberLoadedRows": 2,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLoader(target Target, opts ...LoaderOption) *Loader {
	base := []LoaderOption{
		WithClientConfig(&ClientConfig{Timeout: 5 * time.Second, RateLimit: 1000, RateBurst: 100}),
		WithRetryPolicy(retry.Policy{MaxRetries: 3, Delay: time.Millisecond}),
		WithLogger(logger.NopLogger),
	}
	return NewLoader(target, append(base, opts...)...)
}

var sampleBatch = []Record{
	{"b": "x", "a": 1},
	{"a": 2, "b": "y"},
}

func TestLoad_DiscoveryProbesInOrderUntilRedirect(t *testing.T) {
	got := &captured{}
	coord := coordinator(t, got, StatusSuccess)
	var h1, h2, h3 int32
	fe1 := frontend(t, http.StatusOK, "", &h1)
	fe2 := frontend(t, http.StatusNotFound, "", &h2)
	fe3 := frontend(t, http.StatusTemporaryRedirect, coord.URL+"/api/ods/events/_stream_load", &h3)

	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe1), endpointOf(t, fe2), endpointOf(t, fe3)}}
	res, err := newTestLoader(target).Load(context.Background(), "events", sampleBatch, Options{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&h1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&h2))
	assert.Equal(t, int32(1), atomic.LoadInt32(&h3))
	assert.Equal(t, 1, got.count())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, int64(2), res.LoadedRows)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Warning)
	assert.True(t, strings.HasPrefix(res.Coordinator, coord.URL))
}

func TestLoad_UnreachableEndpointIsSkipped(t *testing.T) {
	got := &captured{}
	coord := coordinator(t, got, StatusSuccess)
	var hits int32
	fe := frontend(t, http.StatusTemporaryRedirect, coord.URL+"/load", &hits)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadEP := endpointOf(t, dead)
	dead.Close()

	target := &fakeTarget{endpoints: []core.Endpoint{deadEP, endpointOf(t, fe)}}
	_, err := newTestLoader(target).Load(context.Background(), "events", sampleBatch, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestLoad_ComposesHeadersAndBody(t *testing.T) {
	got := &captured{}
	coord := coordinator(t, got, StatusSuccess)
	var hits int32
	fe := frontend(t, http.StatusTemporaryRedirect, coord.URL+"/load", &hits)

	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe)}}
	fixed := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	res, err := newTestLoader(target, WithClock(func() time.Time { return fixed })).Load(
		context.Background(), "events", sampleBatch,
		Options{SequenceColumn: "ts", MergeType: MergeMerge, DeleteCondition: "flag=1"},
	)
	require.NoError(t, err)
	require.Equal(t, 1, got.count())

	h := got.headers[0]
	assert.Equal(t, "Basic cm9vdDpwdw==", h.Get("Authorization"))
	assert.Equal(t, "json", h.Get("format"))
	assert.Equal(t, "true", h.Get("strip_outer_array"))
	assert.Equal(t, "true", h.Get("fuzzy_parse"))
	assert.Equal(t, "`a`,`b`", h.Get("columns"))
	assert.Equal(t, "ts", h.Get("function_column.sequence_col"))
	assert.Equal(t, "MERGE", h.Get("merge_type"))
	assert.Equal(t, "flag=1", h.Get("delete"))
	assert.Equal(t, res.Label, h.Get("label"))
	assert.True(t, strings.HasPrefix(res.Label, "events_20240309_140506_"), res.Label)
	assert.Len(t, res.Label, len("events_20240309_140506_")+8)

	var sent []map[string]any
	require.NoError(t, json.Unmarshal(got.bodies[0], &sent))
	require.Len(t, sent, 2)
	assert.Equal(t, "x", sent[0]["b"])
	assert.Equal(t, float64(2), sent[1]["a"])
}

func TestLoad_PublishTimeoutIsSuccessWithWarning(t *testing.T) {
	got := &captured{}
	coord := coordinator(t, got, StatusPublishTimeout)
	var hits int32
	fe := frontend(t, http.StatusTemporaryRedirect, coord.URL+"/load", &hits)

	log := logger.NewBufferLogger()
	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe)}}
	res, err := newTestLoader(target, WithLogger(log)).Load(context.Background(), "events", sampleBatch, Options{})
	require.NoError(t, err)
	assert.True(t, res.Warning)
	assert.Equal(t, 1, res.Attempts)
	require.NotEmpty(t, log.Warnings())
	assert.Contains(t, log.Warnings()[0], "publish timed out")
}

func TestLoad_RetriesFailedStatusThenSucceeds(t *testing.T) {
	got := &captured{}
	coord := coordinator(t, got, "Fail", "HTTP500", StatusSuccess)
	var hits int32
	fe := frontend(t, http.StatusTemporaryRedirect, coord.URL+"/load", &hits)

	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe)}}
	res, err := newTestLoader(target).Load(context.Background(), "events", sampleBatch, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, 3, got.count())

	labels := map[string]bool{}
	for _, h := range got.headers {
		labels[h.Get("label")] = true
	}
	assert.Len(t, labels, 3)
}

func TestLoad_ExplicitLabelReusedAcrossAttempts(t *testing.T) {
	got := &captured{}
	coord := coordinator(t, got, "Fail", StatusSuccess)
	var hits int32
	fe := frontend(t, http.StatusTemporaryRedirect, coord.URL+"/load", &hits)

	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe)}}
	_, err := newTestLoader(target).Load(context.Background(), "events", sampleBatch, Options{Label: "events_batch_7"})
	require.NoError(t, err)
	require.Equal(t, 2, got.count())
	assert.Equal(t, "events_batch_7", got.headers[0].Get("label"))
	assert.Equal(t, "events_batch_7", got.headers[1].Get("label"))
}

type memJournal struct {
	entries []JournalEntry
}

func (m *memJournal) Record(_ context.Context, e JournalEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memSpill struct {
	table, label string
	rows         int
}

func (m *memSpill) Archive(_ context.Context, table, label string, batch []Record) (string, error) {
	m.table, m.label, m.rows = table, label, len(batch)
	return "spill/" + table + "/" + label + ".parquet", nil
}

func TestLoad_ExhaustionSpillsAndJournals(t *testing.T) {
	got := &captured{}
	coord := coordinator(t, got, "Fail")
	var hits int32
	fe := frontend(t, http.StatusTemporaryRedirect, coord.URL+"/load", &hits)

	journal := &memJournal{}
	spill := &memSpill{}
	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe)}}
	res, err := newTestLoader(target, WithJournal(journal), WithSpill(spill)).Load(
		context.Background(), "events", sampleBatch, Options{})

	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeIngest))
	assert.False(t, core.IsRetryable(err))
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 4, got.count())

	assert.Equal(t, "events", spill.table)
	assert.Equal(t, res.Label, spill.label)
	assert.Equal(t, 2, spill.rows)
	assert.Equal(t, "spill/events/"+res.Label+".parquet", res.SpillKey)

	require.Len(t, journal.entries, 1)
	entry := journal.entries[0]
	assert.Equal(t, "Fail", entry.Status)
	assert.Equal(t, 4, entry.Attempts)
	assert.Equal(t, res.SpillKey, entry.SpillKey)
	assert.NotEmpty(t, entry.Error)
}

func TestLoad_NoCoordinatorIsConfigurationError(t *testing.T) {
	var h1, h2 int32
	fe1 := frontend(t, http.StatusOK, "", &h1)
	fe2 := frontend(t, http.StatusForbidden, "", &h2)

	journal := &memJournal{}
	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe1), endpointOf(t, fe2)}}
	res, err := newTestLoader(target, WithJournal(journal)).Load(context.Background(), "events", sampleBatch, Options{})

	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeConfiguration))
	assert.Contains(t, err.Error(), "no reachable write coordinator")
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&h2))
	require.Len(t, journal.entries, 1)
	assert.Equal(t, core.CodeConfiguration, journal.entries[0].Status)
}

func TestLoad_EmptyBatchMakesNoCalls(t *testing.T) {
	var hits int32
	fe := frontend(t, http.StatusOK, "", &hits)

	log := logger.NewBufferLogger()
	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe)}}
	res, err := newTestLoader(target, WithLogger(log)).Load(context.Background(), "events", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, res.Status)
	assert.Zero(t, atomic.LoadInt32(&hits))
	assert.NotEmpty(t, log.Warnings())
}

func TestLoad_NonUniformBatchRejected(t *testing.T) {
	var hits int32
	fe := frontend(t, http.StatusOK, "", &hits)

	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe)}}
	batch := []Record{{"a": 1, "b": 2}, {"a": 1, "c": 3}}
	_, err := newTestLoader(target).Load(context.Background(), "events", batch, Options{})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeConfiguration))
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestLoad_RejectsBadInput(t *testing.T) {
	target := &fakeTarget{}
	l := newTestLoader(target)

	_, err := l.Load(context.Background(), "events/../x", sampleBatch, Options{})
	assert.True(t, core.IsCode(err, core.CodeConfiguration))

	_, err = l.Load(context.Background(), "events", sampleBatch, Options{MergeType: "UPSERT"})
	assert.True(t, core.IsCode(err, core.CodeConfiguration))

	_, err = l.Load(context.Background(), "events", sampleBatch, Options{DeleteCondition: "x=1"})
	assert.True(t, core.IsCode(err, core.CodeConfiguration))
}

func TestLoad_ContextCancelledStops(t *testing.T) {
	var hits int32
	fe := frontend(t, http.StatusOK, "", &hits)
	target := &fakeTarget{endpoints: []core.Endpoint{endpointOf(t, fe)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestLoader(target).Load(ctx, "events", sampleBatch, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestColumnsAndLabel(t *testing.T) {
	cols, err := Columns([]Record{{"z": 1, "a": 2, "m": 3}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, cols)
	assert.Equal(t, "`a`,`m`,`z`", ColumnsHeader(cols))

	_, err = Columns([]Record{{"a": 1}, {"a": 1, "b": 2}})
	assert.True(t, core.IsCode(err, core.CodeConfiguration))

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	l1, l2 := NewLabel("t", now), NewLabel("t", now)
	assert.NotEqual(t, l1, l2)
	assert.True(t, strings.HasPrefix(l1, "t_20240102_030405_"))
}
