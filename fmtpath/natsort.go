package fmtpath

import "sort"

// NaturalLess compares two strings so that embedded digit runs order
// numerically: "file2" sorts before "file10". Non-digit runs compare
// bytewise.
func NaturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			da, ra := digitRun(a)
			db, rb := digitRun(b)
			if da != db {
				return numLess(da, db)
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

// SortNatural sorts paths in place by NaturalLess.
func SortNatural(paths []string) {
	sort.Slice(paths, func(i, j int) bool { return NaturalLess(paths[i], paths[j]) })
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func digitRun(s string) (run, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// numLess compares two digit runs as numbers of arbitrary length. Leading
// zeros are ignored for magnitude; equal magnitudes fall back to the longer
// (more zero-padded) run sorting first for stability.
func numLess(a, b string) bool {
	ta, tb := trimZeros(a), trimZeros(b)
	if len(ta) != len(tb) {
		return len(ta) < len(tb)
	}
	if ta != tb {
		return ta < tb
	}
	return len(a) > len(b)
}

func trimZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}
