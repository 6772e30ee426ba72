package fileset

import "sort"

// The composite join is row-driven: the right-hand table is pivoted into a
// nested index keyed successively by each join key's value, and every
// left-hand row walks that index to find its partners. A row with a
// concrete value follows the matching bucket plus the wildcard bucket; a
// row that does not constrain a key follows every bucket at that level, so
// rows from a child whose template omits the key broadcast across that
// dimension. Left rows without partners and right rows matched by no left
// row pass through unmerged, which makes the join a full outer join.

type pivotNode struct {
	children map[string]*pivotNode // keyed by canonical value token
	wild     *pivotNode
	rows     []int // leaf level: indices into the pivoted table
}

func newPivotNode() *pivotNode {
	return &pivotNode{children: map[string]*pivotNode{}}
}

// buildPivot indexes rows by the values of keys, in order. Rows lacking a
// key go into the wildcard bucket at that level.
func buildPivot(rows []Props, keys []string) *pivotNode {
	root := newPivotNode()
	for i, row := range rows {
		node := root
		for _, k := range keys {
			v, ok := row[k]
			if !ok || v == nil {
				if node.wild == nil {
					node.wild = newPivotNode()
				}
				node = node.wild
				continue
			}
			token := valueToken(v)
			child, ok := node.children[token]
			if !ok {
				child = newPivotNode()
				node.children[token] = child
			}
			node = child
		}
		node.rows = append(node.rows, i)
	}
	return root
}

// collectMatches gathers the indices of every pivoted row compatible with
// row: at each level a concrete value descends into its own bucket and the
// wildcard bucket, an absent value descends into all of them. Buckets are
// visited in canonical token order so the output is deterministic.
func collectMatches(node *pivotNode, keys []string, depth int, row Props, out *[]int) {
	if node == nil {
		return
	}
	if depth == len(keys) {
		*out = append(*out, node.rows...)
		return
	}
	if v, ok := row[keys[depth]]; ok && v != nil {
		collectMatches(node.children[valueToken(v)], keys, depth+1, row, out)
		collectMatches(node.wild, keys, depth+1, row, out)
		return
	}
	tokens := make([]string, 0, len(node.children))
	for token := range node.children {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	for _, token := range tokens {
		collectMatches(node.children[token], keys, depth+1, row, out)
	}
	collectMatches(node.wild, keys, depth+1, row, out)
}

// mergeRows combines two rows of one joined result. Both rows defining the
// same key with differing concrete values is a data-consistency defect and
// fails rather than silently preferring one side.
func mergeRows(a, b Props) (Props, error) {
	out := cloneProps(a)
	for k, v := range b {
		if prev, ok := out[k]; ok && !valuesEqual(prev, v) {
			return nil, &JoinConflictError{Key: k, A: prev, B: v}
		}
		out[k] = v
	}
	return out, nil
}

// joinOuter full-outer-joins two row sets on joinKeys.
func joinOuter(left, right []Props, joinKeys []string) ([]Props, error) {
	if len(left) == 0 {
		return right, nil
	}
	if len(right) == 0 {
		return left, nil
	}
	pivot := buildPivot(right, joinKeys)
	matched := make([]bool, len(right))
	var out []Props
	var matches []int
	for _, lrow := range left {
		matches = matches[:0]
		collectMatches(pivot, joinKeys, 0, lrow, &matches)
		if len(matches) == 0 {
			out = append(out, lrow)
			continue
		}
		for _, i := range matches {
			matched[i] = true
			merged, err := mergeRows(lrow, right[i])
			if err != nil {
				return nil, err
			}
			out = append(out, merged)
		}
	}
	for i, rrow := range right {
		if !matched[i] {
			out = append(out, rrow)
		}
	}
	return out, nil
}

// joinTables outer-joins the named record tables on joinKeys, folding them
// pairwise. Table rows use bare join key names; non-key columns are
// expected to be already prefixed per table, so only join keys can collide.
// The result is ordered by join key values, rows without a key first.
func joinTables(tables []namedTable, joinKeys []string) ([]Props, error) {
	var rows []Props
	for i, t := range tables {
		if i == 0 {
			rows = t.rows
			continue
		}
		var err error
		rows, err = joinOuter(rows, t.rows, joinKeys)
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return propsToken(rows[i], joinKeys) < propsToken(rows[j], joinKeys)
	})
	return rows, nil
}

type namedTable struct {
	name string
	rows []Props
}
