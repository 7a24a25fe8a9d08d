// Package natsort orders strings the way people expect file names to be ordered:
// embedded runs of digits compare by numeric value and everything else compares
// case-insensitively, so "img2" sorts before "img10".
package natsort

import (
	"slices"
	"unicode"
	"unicode/utf8"
)

// Compare returns -1 if a sorts before b, +1 if a sorts after b and 0 if the two
// names are equivalent under natural ordering.
//
// The comparison walks both names with independent cursors. When both cursors sit
// on a digit the full digit runs are compared by value; a single leading digit sorts
// before any non-digit; other runes compare by their upper-case form. A name that
// runs out first sorts first, so "" precedes every non-empty name.
func Compare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		da, db := isDigit(a[i]), isDigit(b[j])
		switch {
		case da && db:
			ei, ej := digitRunEnd(a, i), digitRunEnd(b, j)
			if c := compareDigits(a[i:ei], b[j:ej]); c != 0 {
				return c
			}
			i, j = ei, ej
		case da:
			return -1
		case db:
			return 1
		default:
			ra, wa := utf8.DecodeRuneInString(a[i:])
			rb, wb := utf8.DecodeRuneInString(b[j:])
			ua, ub := unicode.ToUpper(ra), unicode.ToUpper(rb)
			if ua != ub {
				if ua < ub {
					return -1
				}
				return 1
			}
			i += wa
			j += wb
		}
	}

	switch {
	case i >= len(a) && j >= len(b):
		return 0
	case i >= len(a):
		return -1
	default:
		return 1
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Sort sorts names in place in natural order. Equivalent names keep their
// relative order.
func Sort(names []string) {
	slices.SortStableFunc(names, Compare)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func digitRunEnd(s string, start int) int {
	end := start
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	return end
}

// compareDigits compares two non-empty digit runs by numeric value without
// converting them, so runs longer than an int64 still order correctly.
func compareDigits(x, y string) int {
	x = trimZeros(x)
	y = trimZeros(y)
	if len(x) != len(y) {
		if len(x) < len(y) {
			return -1
		}
		return 1
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
