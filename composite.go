package fileset

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Composite joins multiple named child sources into one logical dataset via
// a full outer join on their shared path properties. Composite records use
// flat keys of the form <childName><separator><propertyName>; the join key
// columns appear under the reserved join-level name (default "index").
// A child can itself be a Composite.
type Composite struct {
	children  map[string]Source
	order     []string // sorted child names, for deterministic reads
	joinKeys  map[string][]string
	allKeys   []string // union of per-child join keys, sorted
	joinLevel string
	sep       string
	frontend  Frontend
	logger    *slog.Logger
}

var _ Source = (*Composite)(nil)

// KeyProps returns the union of the children's join keys.
func (c *Composite) KeyProps() []string {
	out := make([]string, len(c.allKeys))
	copy(out, c.allKeys)
	return out
}

// Writable reports whether at least one child accepts writes.
func (c *Composite) Writable() bool {
	for _, child := range c.children {
		if child.Writable() {
			return true
		}
	}
	return false
}

// InvalidateCache forwards to every child.
func (c *Composite) InvalidateCache(constraints Constraints) error {
	for _, name := range c.order {
		if err := c.children[name].InvalidateCache(constraints); err != nil {
			return err
		}
	}
	return nil
}

// ReadRecords reads every child with the same constraints and outer-joins
// the results. Join key columns are exposed as <joinLevel><sep><key>; a row
// present in only some children carries only those children's columns.
func (c *Composite) ReadRecords(constraints Constraints) ([]Props, error) {
	rows, err := c.readBare(constraints)
	if err != nil {
		return nil, err
	}
	keySet := c.keySet()
	out := make([]Props, len(rows))
	for i, row := range rows {
		rec := make(Props, len(row))
		for k, v := range row {
			if _, isKey := keySet[k]; isKey {
				rec[c.joinLevel+c.sep+k] = v
			} else {
				rec[k] = v
			}
		}
		out[i] = rec
	}
	return out, nil
}

// readBare returns joined rows in internal form: bare join key names plus
// child-prefixed content columns.
func (c *Composite) readBare(constraints Constraints) ([]Props, error) {
	tables := make([]namedTable, 0, len(c.children))
	for _, name := range c.order {
		child := c.children[name]
		rows, err := child.readBare(constraints)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		tables = append(tables, namedTable{name: name, rows: c.prefixRows(name, rows)})
	}
	return joinTables(tables, c.allKeys)
}

// prefixRows rewrites one child's rows into the composite's namespace: join
// keys stay bare, everything else gains the child name prefix.
func (c *Composite) prefixRows(name string, rows []Props) []Props {
	keys := map[string]struct{}{}
	for _, k := range c.joinKeys[name] {
		keys[k] = struct{}{}
	}
	out := make([]Props, len(rows))
	for i, row := range rows {
		rec := make(Props, len(row))
		for k, v := range row {
			if _, isKey := keys[k]; isKey {
				rec[k] = v
			} else {
				rec[name+c.sep+k] = v
			}
		}
		out[i] = rec
	}
	return out
}

// WriteRecords splits flat composite records back into per-child batches.
// Keys under the reserved join-level name supply the row's join key values;
// keys of unknown or read-only children are dropped with a warning, not an
// error. A child that a row names through join keys only (no content
// columns) receives nothing: files are created for content, never for bare
// key tuples.
func (c *Composite) WriteRecords(records []Props, opts ...WriteOption) error {
	cfg := applyWriteOptions(opts)
	keySet := c.keySet()
	bare := make([]Props, len(records))
	joinPrefix := c.joinLevel + c.sep
	for i, rec := range records {
		row := make(Props, len(rec))
		for k, v := range rec {
			if strings.HasPrefix(k, joinPrefix) {
				name := k[len(joinPrefix):]
				if _, isKey := keySet[name]; isKey {
					row[name] = v
					continue
				}
			}
			row[k] = v
		}
		bare[i] = row
	}
	return c.writeBare(bare, cfg.dryRun)
}

func (c *Composite) writeBare(records []Props, dryRun bool) error {
	keySet := c.keySet()
	batches := map[string][]Props{}
	warned := map[string]bool{}

	for _, rec := range records {
		joinVals := Props{}
		perChild := map[string]Props{}
		for k, v := range rec {
			if _, isKey := keySet[k]; isKey {
				joinVals[k] = v
				continue
			}
			name, prop, found := strings.Cut(k, c.sep)
			child, known := c.children[name]
			if !found || !known {
				if !warned[k] {
					c.logger.Warn("dropping column of unknown child", "column", k)
					warned[k] = true
				}
				continue
			}
			if !child.Writable() {
				if !warned[name] {
					c.logger.Info("write skipped for read-only child", "child", name)
					warned[name] = true
				}
				continue
			}
			if perChild[name] == nil {
				perChild[name] = Props{}
			}
			perChild[name][prop] = v
		}

		// Each child batch gets the row's join key values filtered to the
		// keys that child actually uses.
		for name, props := range perChild {
			for _, k := range c.joinKeys[name] {
				if v, ok := joinVals[k]; ok {
					props[k] = v
				}
			}
			batches[name] = append(batches[name], props)
		}
	}

	names := make([]string, 0, len(batches))
	for name := range batches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.children[name].writeBare(batches[name], dryRun); err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
	}
	return nil
}

// ReadContent returns the single joined row via the frontend.
func (c *Composite) ReadContent(constraints Constraints) (any, error) {
	records, err := c.ReadRecords(constraints)
	if err != nil {
		return nil, err
	}
	return c.frontend.RecordsToContent(records)
}

// ReadContents returns all joined rows via the frontend.
func (c *Composite) ReadContents(constraints Constraints) (any, error) {
	records, err := c.ReadRecords(constraints)
	if err != nil {
		return nil, err
	}
	return c.frontend.RecordsToContents(records)
}

// WriteContent writes one frontend-shaped joined row.
func (c *Composite) WriteContent(content any, opts ...WriteOption) error {
	records, err := c.frontend.ContentToRecords(content)
	if err != nil {
		return err
	}
	return c.WriteRecords(records, opts...)
}

// WriteContents writes frontend-shaped joined rows.
func (c *Composite) WriteContents(contents any, opts ...WriteOption) error {
	records, err := c.frontend.ContentsToRecords(contents)
	if err != nil {
		return err
	}
	return c.WriteRecords(records, opts...)
}

func (c *Composite) keySet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.allKeys))
	for _, k := range c.allKeys {
		set[k] = struct{}{}
	}
	return set
}
