package spill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/nucleus/doris-core/internal/config"
	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/ddl"
	"github.com/nucleus/doris-core/internal/objectstore"
	"github.com/nucleus/doris-core/internal/streamload"
)

// CodeArchiveFailed marks a batch that could not be encoded.
const CodeArchiveFailed = "E_SPILL_ARCHIVE"

// Archive writes a batch as one Snappy Parquet file under
// <prefix>/spill/<table>/dt=<date>/<label>.parquet. Every column is an
// optional UTF8 string; non-string values are stored as their JSON text.
type Archive struct {
	store  objectstore.Store
	bucket string
	prefix string
	now    func() time.Time
}

var _ streamload.Spill = (*Archive)(nil)

// NewArchive builds an archive over store.
func NewArchive(store objectstore.Store, bucket, prefix string) *Archive {
	if bucket == "" {
		bucket = config.DefaultSpillBucket
	}
	return &Archive{store: store, bucket: bucket, prefix: prefix, now: time.Now}
}

// Archive stores batch and returns the object URI.
func (a *Archive) Archive(ctx context.Context, table, label string, batch []streamload.Record) (string, error) {
	if len(batch) == 0 {
		return "", nil
	}
	if label == "" {
		label = streamload.NewLabel(table, a.now())
	}
	data, err := encodeParquet(batch)
	if err != nil {
		return "", err
	}
	if err := a.store.EnsureBucket(ctx, a.bucket); err != nil {
		return "", err
	}
	key := objectstore.JoinKey(
		a.prefix,
		"spill",
		table,
		"dt="+a.now().UTC().Format("2006-01-02"),
		label+".parquet",
	)
	if err := a.store.PutObject(ctx, a.bucket, key, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("minio://%s/%s", a.bucket, key), nil
}

func encodeParquet(batch []streamload.Record) ([]byte, error) {
	cols := columnUnion(batch)
	// Names end up inside parquet-go tag strings, which split on ',' and '='.
	for _, c := range cols {
		if err := ddl.ValidateIdentifier("column", c); err != nil {
			return nil, core.Wrap(CodeArchiveFailed, false, err)
		}
	}

	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(schemaFor(cols), pfw, 4)
	if err != nil {
		return nil, core.Wrap(CodeArchiveFailed, false, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range batch {
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			row[c] = stringify(rec[c])
		}
		line, err := json.Marshal(row)
		if err != nil {
			_ = pw.WriteStop()
			return nil, core.Wrap(CodeArchiveFailed, false, err)
		}
		if err := pw.Write(string(line)); err != nil {
			_ = pw.WriteStop()
			return nil, core.Wrap(CodeArchiveFailed, false, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, core.Wrap(CodeArchiveFailed, false, err)
	}
	_ = pfw.Close()
	return buf.Bytes(), nil
}

func columnUnion(batch []streamload.Record) []string {
	seen := map[string]bool{}
	var cols []string
	for _, rec := range batch {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func schemaFor(cols []string) string {
	fields := make([]map[string]string, 0, len(cols))
	for _, c := range cols {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", c),
		})
	}
	b, _ := json.Marshal(map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	})
	return string(b)
}

func stringify(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case []byte:
		return string(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
