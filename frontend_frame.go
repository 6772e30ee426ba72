package fileset

import "fmt"

// FrameFrontend presents multi-record views as a *Frame and single-record
// views as a Props row.
type FrameFrontend struct{}

var _ Frontend = FrameFrontend{}

func (FrameFrontend) RecordsToContent(records []Props) (any, error) {
	if len(records) != 1 {
		return nil, fmt.Errorf("%w: got %d records", ErrSingletonExpected, len(records))
	}
	return cloneProps(records[0]), nil
}

func (FrameFrontend) RecordsToContents(records []Props) (any, error) {
	return FrameFromRecords(records), nil
}

func (FrameFrontend) ContentToRecords(content any) ([]Props, error) {
	m, ok := asPropsMap(content)
	if !ok {
		return nil, conversionErrf("expected a mapping, got %T", content)
	}
	return []Props{m}, nil
}

func (FrameFrontend) ContentsToRecords(contents any) ([]Props, error) {
	f, ok := contents.(*Frame)
	if !ok {
		return nil, conversionErrf("expected a *Frame, got %T", contents)
	}
	return f.Records(), nil
}
