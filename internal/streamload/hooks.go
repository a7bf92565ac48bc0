package streamload

import (
	"context"
	"time"
)

// JournalEntry is the durable record of one Load call.
type JournalEntry struct {
	Label       string    `json:"label"`
	Database    string    `json:"database"`
	Table       string    `json:"table"`
	Status      string    `json:"status"`
	Rows        int       `json:"rows"`
	LoadedRows  int64     `json:"loaded_rows"`
	Attempts    int       `json:"attempts"`
	Coordinator string    `json:"coordinator,omitempty"`
	SpillKey    string    `json:"spill_key,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Journal records load outcomes.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
}

// Spill keeps a batch whose retries were exhausted and returns where it went.
type Spill interface {
	Archive(ctx context.Context, table, label string, batch []Record) (string, error)
}
