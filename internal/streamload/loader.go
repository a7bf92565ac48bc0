package streamload

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/ddl"
	"github.com/nucleus/doris-core/internal/logger"
	"github.com/nucleus/doris-core/internal/retry"
)

// Payload statuses returned by the coordinator.
const (
	StatusSuccess        = "Success"
	StatusPublishTimeout = "Publish Timeout"

	// StatusEmpty is reported locally for a batch with no records.
	StatusEmpty = "Empty"
)

// Target is where loads go: the front-end list, the database and the
// Authorization value. *session.Session satisfies it.
type Target interface {
	Endpoints() []core.Endpoint
	Database() string
	AuthHeader() string
}

// LoadResult summarizes the last attempt of a Load call.
type LoadResult struct {
	Label        string
	Coordinator  string
	HTTPStatus   int
	TxnID        int64
	Status       string
	Message      string
	TotalRows    int64
	LoadedRows   int64
	FilteredRows int64
	LoadBytes    int64
	LoadTimeMs   int64
	ErrorURL     string
	// Warning is set when the load was accepted without a confirmed publish.
	Warning  bool
	Attempts int
	SpillKey string
}

// loadPayload mirrors the coordinator's JSON reply.
type loadPayload struct {
	TxnID                int64  `json:"TxnId"`
	Label                string `json:"Label"`
	Status               string `json:"Status"`
	Message              string `json:"Message"`
	NumberTotalRows      int64  `json:"NumberTotalRows"`
	NumberLoadedRows     int64  `json:"NumberLoadedRows"`
	NumberFilteredRows   int64  `json:"NumberFilteredRows"`
	NumberUnselectedRows int64  `json:"NumberUnselectedRows"`
	LoadBytes            int64  `json:"LoadBytes"`
	LoadTimeMs           int64  `json:"LoadTimeMs"`
	ErrorURL             string `json:"ErrorURL"`
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithClientConfig replaces the HTTP client configuration. Auth is always
// taken from the target.
func WithClientConfig(cfg *ClientConfig) LoaderOption {
	return func(l *Loader) { l.clientConfig = cfg }
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p retry.Policy) LoaderOption {
	return func(l *Loader) { l.policy = p }
}

// WithLogger injects the logger.
func WithLogger(log logger.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// WithJournal records every Load outcome.
func WithJournal(j Journal) LoaderOption {
	return func(l *Loader) { l.journal = j }
}

// WithSpill archives batches whose retries were exhausted.
func WithSpill(s Spill) LoaderOption {
	return func(l *Loader) { l.spill = s }
}

// WithClock replaces time.Now for labels and journal timestamps.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) { l.now = now }
}

// Loader writes batches through the stream load endpoint.
type Loader struct {
	target       Target
	client       *Client
	clientConfig *ClientConfig
	policy       retry.Policy
	log          logger.Logger
	journal      Journal
	spill        Spill
	now          func() time.Time
}

// NewLoader builds a Loader for target.
func NewLoader(target Target, opts ...LoaderOption) *Loader {
	l := &Loader{
		target: target,
		policy: retry.DefaultPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = logger.OrDefault(l.log).WithPrefix("streamload")
	if l.policy.Logger == nil {
		l.policy.Logger = l.log
	}

	cfg := DefaultClientConfig()
	if l.clientConfig != nil {
		c := *l.clientConfig
		cfg = &c
	}
	cfg.Auth = HeaderAuth{Value: target.AuthHeader()}
	l.client = NewClient(cfg)
	return l
}

// Database is the database batches are loaded into.
func (l *Loader) Database() string { return l.target.Database() }

// Load sends batch to table. Each attempt rediscovers the coordinator.
// Retryable failures are retried under the loader's policy; configuration
// problems stop immediately.
func (l *Loader) Load(ctx context.Context, table string, batch []Record, opts Options) (*LoadResult, error) {
	if err := ddl.ValidateIdentifier("table", table); err != nil {
		return nil, err
	}
	if err := ddl.ValidateIdentifier("database", l.target.Database()); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		l.log.Warnf("nothing has been sent to %s: batch is empty", table)
		return &LoadResult{Status: StatusEmpty}, nil
	}

	cols := opts.Columns
	if len(cols) == 0 {
		var err error
		if cols, err = Columns(batch); err != nil {
			return nil, err
		}
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, core.Configurationf("encode batch for %s: %w", table, err)
	}

	var last *LoadResult
	res := l.policy.Do(ctx, func(ctx context.Context) (bool, error) {
		r, err := l.attempt(ctx, table, cols, body, opts)
		if r != nil {
			last = r
		}
		return err == nil, err
	})
	if last == nil {
		last = &LoadResult{}
	}
	last.Attempts = res.Attempts

	var outErr error
	switch {
	case res.Succeeded:
	case res.Exhausted():
		outErr = core.Wrap(core.CodeIngest, false,
			fmt.Errorf("stream load into %s failed after %d attempts: %w", table, res.Attempts, res.Err))
		if l.spill != nil {
			key, err := l.spill.Archive(ctx, table, last.Label, batch)
			if err != nil {
				l.log.Errorf("spill of %d records for %s failed: %v", len(batch), table, err)
			} else {
				last.SpillKey = key
				l.log.Warnf("spilled %d records for %s to %s", len(batch), table, key)
			}
		}
	default:
		outErr = res.Err
	}

	l.record(ctx, table, len(batch), last, outErr)
	return last, outErr
}

func (l *Loader) attempt(ctx context.Context, table string, cols []string, body []byte, opts Options) (*LoadResult, error) {
	headers := l.headers(opts)
	coordinator, err := l.discover(ctx, table, headers)
	if err != nil {
		return nil, err
	}

	label := opts.Label
	if label == "" {
		label = NewLabel(table, l.now())
	}
	headers["label"] = label
	headers["columns"] = ColumnsHeader(cols)

	result := &LoadResult{Label: label, Coordinator: coordinator}
	resp, err := l.client.Do(ctx, &Request{
		Method:  http.MethodPut,
		URL:     coordinator,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return result, core.Ingestf("stream load %s: %w", label, err)
	}
	result.HTTPStatus = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		l.log.Errorf("stream load %s to %s returned HTTP %d: %s", label, coordinator, resp.StatusCode, resp.Body)
		return result, core.Ingestf("stream load %s: %w", label,
			&HTTPError{StatusCode: resp.StatusCode, Message: string(resp.Body)})
	}

	var payload loadPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		l.log.Errorf("stream load %s: unreadable response: %s", label, resp.Body)
		return result, core.Ingestf("stream load %s: decode response: %w", label, err)
	}
	result.TxnID = payload.TxnID
	result.Status = payload.Status
	result.Message = payload.Message
	result.TotalRows = payload.NumberTotalRows
	result.LoadedRows = payload.NumberLoadedRows
	result.FilteredRows = payload.NumberFilteredRows
	result.LoadBytes = payload.LoadBytes
	result.LoadTimeMs = payload.LoadTimeMs
	result.ErrorURL = payload.ErrorURL

	switch payload.Status {
	case StatusSuccess:
		l.log.Infof("stream load %s into %s.%s: %d rows loaded", label, l.target.Database(), table, payload.NumberLoadedRows)
		return result, nil
	case StatusPublishTimeout:
		result.Warning = true
		l.log.Warnf("stream load %s into %s.%s committed but publish timed out: %s", label, l.target.Database(), table, payload.Message)
		return result, nil
	default:
		l.log.Errorf("stream load %s failed with status %q: %s %s", label, payload.Status, payload.Message, payload.ErrorURL)
		return result, core.Ingestf("stream load %s: status %q: %s", label, payload.Status, payload.Message)
	}
}

// discover probes the front-ends in order and returns the first redirect
// target.
func (l *Loader) discover(ctx context.Context, table string, headers map[string]string) (string, error) {
	for _, ep := range l.target.Endpoints() {
		url := fmt.Sprintf("http://%s/api/%s/%s/_stream_load", ep, l.target.Database(), table)
		resp, err := l.client.Do(ctx, &Request{Method: http.MethodPut, URL: url, Headers: headers})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			l.log.Debugf("probe %s: %v", url, err)
			continue
		}
		if !resp.IsRedirect() {
			l.log.Debugf("probe %s: HTTP %d, no redirect", url, resp.StatusCode)
			continue
		}
		location := resp.Headers.Get("Location")
		if location == "" {
			l.log.Debugf("probe %s: redirect without location", url)
			continue
		}
		l.log.Debugf("write coordinator for %s is %s", table, location)
		return location, nil
	}
	return "", core.Configurationf("no reachable write coordinator among %d front-ends", len(l.target.Endpoints()))
}

func (l *Loader) headers(opts Options) map[string]string {
	h := map[string]string{
		"Expect":            "100-continue",
		"format":            "json",
		"strip_outer_array": "true",
		"fuzzy_parse":       "true",
	}
	if opts.SequenceColumn != "" {
		h["function_column.sequence_col"] = opts.SequenceColumn
	}
	if opts.MergeType != "" {
		h["merge_type"] = string(opts.MergeType)
	}
	if opts.DeleteCondition != "" {
		h["delete"] = opts.DeleteCondition
	}
	return h
}

func (l *Loader) record(ctx context.Context, table string, rows int, r *LoadResult, loadErr error) {
	if l.journal == nil {
		return
	}
	entry := JournalEntry{
		Label:       r.Label,
		Database:    l.target.Database(),
		Table:       table,
		Status:      r.Status,
		Rows:        rows,
		LoadedRows:  r.LoadedRows,
		Attempts:    r.Attempts,
		Coordinator: r.Coordinator,
		SpillKey:    r.SpillKey,
		Timestamp:   l.now().UTC(),
	}
	if loadErr != nil {
		entry.Error = loadErr.Error()
		if entry.Status == "" {
			entry.Status = core.CodeOf(loadErr)
		}
	}
	if err := l.journal.Record(ctx, entry); err != nil {
		l.log.Warnf("journal entry for %s not written: %v", entry.Label, err)
	}
}
