// Package clocks extracts memory clock speeds from nvidia-smi output and
// picks the clock a profile locks to.
package clocks

import (
	"cmp"
	"math"
	"slices"
)

// MaxClocks caps how many values Parse keeps.
const MaxClocks = 128

// Parse collects every run of ASCII digits in text as a base-10 integer, in
// order of appearance, stopping once limit values are held. The result is
// sorted descending. Signs, decimal points and units are treated as
// separators. A digit run too large for int saturates at math.MaxInt.
func Parse(text string, limit int) []int {
	if limit <= 0 {
		return []int{}
	}

	values := make([]int, 0, min(limit, 16))

	for i := 0; i < len(text) && len(values) < limit; {
		if !isDigit(text[i]) {
			i++
			continue
		}

		value, n := digitRun(text[i:])
		values = append(values, value)
		i += n
	}

	slices.SortStableFunc(values, func(a, b int) int {
		return cmp.Compare(b, a)
	})

	return values
}

// First returns the first digit run in text.
func First(text string) (int, bool) {
	for i := 0; i < len(text); i++ {
		if isDigit(text[i]) {
			value, _ := digitRun(text[i:])
			return value, true
		}
	}

	return 0, false
}

// digitRun parses the leading digits of s and reports how many bytes it used.
func digitRun(s string) (value int, n int) {
	for n < len(s) && isDigit(s[n]) {
		digit := int(s[n] - '0')

		if value > (math.MaxInt-digit)/10 {
			value = math.MaxInt
		} else {
			value = value*10 + digit
		}

		n++
	}

	return value, n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
