package fileset

import "fmt"

// Frame is a small column-oriented table: the tabular counterpart of a
// []Props record list. Column order is stable; missing cells are nil.
type Frame struct {
	columns []string
	index   map[string]int
	data    [][]any // one slice per column
	rows    int
}

// NewFrame creates an empty frame with the given columns.
func NewFrame(columns ...string) *Frame {
	f := &Frame{index: map[string]int{}}
	for _, c := range columns {
		f.addColumn(c)
	}
	return f
}

// FrameFromRecords builds a frame whose columns are the sorted union of all
// record keys.
func FrameFromRecords(records []Props) *Frame {
	f := NewFrame()
	seen := map[string]bool{}
	for _, rec := range records {
		for _, k := range sortedKeys(rec) {
			if !seen[k] {
				seen[k] = true
				f.addColumn(k)
			}
		}
	}
	for _, rec := range records {
		f.AppendRow(rec)
	}
	return f
}

func (f *Frame) addColumn(name string) {
	if _, ok := f.index[name]; ok {
		return
	}
	f.index[name] = len(f.columns)
	f.columns = append(f.columns, name)
	f.data = append(f.data, make([]any, f.rows))
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Column returns the cells of one column, or nil if absent.
func (f *Frame) Column(name string) []any {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.data[i]
}

// At returns the cell at row i, column name.
func (f *Frame) At(i int, name string) any {
	col, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.data[col][i]
}

// Row returns row i as a record, omitting nil cells.
func (f *Frame) Row(i int) Props {
	rec := Props{}
	for c, name := range f.columns {
		if v := f.data[c][i]; v != nil {
			rec[name] = v
		}
	}
	return rec
}

// AppendRow adds a record as a new row, creating columns for unknown keys.
func (f *Frame) AppendRow(rec Props) {
	for _, k := range sortedKeys(rec) {
		f.addColumn(k)
	}
	for c, name := range f.columns {
		f.data[c] = append(f.data[c], rec[name])
	}
	f.rows++
}

// Records converts the frame back to a record list.
func (f *Frame) Records() []Props {
	out := make([]Props, f.rows)
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%d rows, %d columns)", f.rows, len(f.columns))
}
