package migration

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nucleus/doris-core/internal/session"
)

// fakeQuerier answers reads by statement prefix and records every statement.
type fakeQuerier struct {
	mu       sync.Mutex
	reads    map[string]*session.Rows
	failOn   map[string]error
	executed []string
	queried  []string
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{reads: map[string]*session.Rows{}, failOn: map[string]error{}}
}

func (f *fakeQuerier) on(prefix string, rows ...map[string]any) {
	f.reads[prefix] = &session.Rows{Named: rows}
}

func (f *fakeQuerier) Execute(_ context.Context, stmt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, stmt)
	for prefix, err := range f.failOn {
		if strings.HasPrefix(stmt, prefix) {
			return err
		}
	}
	return nil
}

func (f *fakeQuerier) Read(_ context.Context, query string, _ session.RowForm) (*session.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, query)
	for prefix, err := range f.failOn {
		if strings.HasPrefix(query, prefix) {
			return nil, err
		}
	}
	best := ""
	for prefix := range f.reads {
		if strings.HasPrefix(query, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, errors.New("unexpected query: " + query)
	}
	r := f.reads[best]
	return &session.Rows{Named: append([]map[string]any(nil), r.Named...)}, nil
}

// mutations returns executed statements other than USE.
func (f *fakeQuerier) mutations() []string {
	var out []string
	for _, s := range f.executed {
		if !strings.HasPrefix(s, "USE ") {
			out = append(out, s)
		}
	}
	return out
}

var _ session.Querier = (*fakeQuerier)(nil)
