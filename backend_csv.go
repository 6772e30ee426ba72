package fileset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/go-git/go-billy/v5"
)

// CSVBackend reads and writes CSV files with a header row. CSV files are
// never singletons; every cell decodes as a string, like the original
// format leaves typing to the consumer.
type CSVBackend struct{}

var _ Backend = CSVBackend{}

func (CSVBackend) Decode(fs billy.Filesystem, path string, pathProps Props, constraints Constraints) ([]Props, error) {
	data, err := readAll(fs, path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(data))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, decodeErr(path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	records := make([]Props, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(Props, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	out, err := coerceDecoded(path, records, pathProps, constraints, false)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (CSVBackend) Encode(fs billy.Filesystem, path string, records []Props) error {
	// Union of all record keys, first-record keys leading for a stable,
	// readable header.
	var header []string
	seen := map[string]bool{}
	for _, rec := range records {
		for _, k := range sortedKeys(rec) {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return conversionErrf("encode %q: %v", path, err)
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			row[i] = csvCell(rec[col])
		}
		if err := w.Write(row); err != nil {
			return conversionErrf("encode %q: %v", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return conversionErrf("encode %q: %v", path, err)
	}
	return writeAll(fs, path, buf.Bytes())
}

func csvCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
