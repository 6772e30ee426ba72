package fileset

import "fmt"

// RecordFrontend presents rows as plain maps: a single Props for one-record
// views and a []Props for multi-record views.
type RecordFrontend struct{}

var _ Frontend = RecordFrontend{}

func (RecordFrontend) RecordsToContent(records []Props) (any, error) {
	if len(records) != 1 {
		return nil, fmt.Errorf("%w: got %d records", ErrSingletonExpected, len(records))
	}
	return cloneProps(records[0]), nil
}

func (RecordFrontend) RecordsToContents(records []Props) (any, error) {
	return cloneRecords(records), nil
}

func (RecordFrontend) ContentToRecords(content any) ([]Props, error) {
	m, ok := asPropsMap(content)
	if !ok {
		return nil, conversionErrf("expected a mapping, got %T", content)
	}
	return []Props{m}, nil
}

func (RecordFrontend) ContentsToRecords(contents any) ([]Props, error) {
	l, ok := asPropsList(contents)
	if !ok {
		return nil, conversionErrf("expected a list of mappings, got %T", contents)
	}
	return l, nil
}
