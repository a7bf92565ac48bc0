package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nucleus/doris-core/pkg/doris"
)

func newLoadCmd(root *rootFlags) *cobra.Command {
	var (
		file      string
		batchSize int
		opts      doris.LoadOptions
		mergeType string
	)
	cmd := &cobra.Command{
		Use:   "load TABLE",
		Short: "Stream load a JSON array or JSON lines file into TABLE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			client, _, err := root.open()
			if err != nil {
				return err
			}
			defer client.Close()

			opts.MergeType = doris.MergeType(mergeType)
			if batchSize <= 0 {
				batchSize = len(records)
			}
			out := cmd.OutOrStdout()
			for start := 0; start < len(records) || start == 0; start += batchSize {
				end := start + batchSize
				if end > len(records) {
					end = len(records)
				}
				res, err := client.Load(cmd.Context(), args[0], records[start:end], opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\tloaded=%d filtered=%d attempts=%d\n",
					res.Label, res.Status, res.LoadedRows, res.FilteredRows, res.Attempts)
				if end >= len(records) {
					break
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "input file, - for stdin")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per stream load, 0 for one load")
	cmd.Flags().StringVar(&opts.SequenceColumn, "sequence-col", "", "sequence column for unique-key tables")
	cmd.Flags().StringVar(&mergeType, "merge-type", "", "APPEND, DELETE or MERGE")
	cmd.Flags().StringVar(&opts.DeleteCondition, "delete", "", "delete condition, requires --merge-type MERGE")
	cmd.Flags().StringVar(&opts.Label, "label", "", "fixed label reused across retries")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "explicit column list")
	return cmd
}

// readRecords accepts either one JSON array or one object per line.
func readRecords(path string, stdin io.Reader) ([]doris.Record, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var records []doris.Record
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode JSON array: %w", err)
		}
		return records, nil
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	for line := 1; sc.Scan(); line++ {
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec doris.Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}
