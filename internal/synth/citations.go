package synth

import (
	"regexp"
	"sort"
	"strconv"
)

var citeRe = regexp.MustCompile(`\[(\d+)\]`)

// Citations summarizes the [n] markers of a report.
type Citations struct {
	InRange    []int
	OutOfRange []int
}

// ValidateCitations scans markdown for [n] markers and splits the distinct
// numbers by whether they index a list of numReferences entries.
func ValidateCitations(markdown string, numReferences int) Citations {
	seen := map[int]struct{}{}
	var c Citations
	for _, m := range citeRe.FindAllStringSubmatch(markdown, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = -1
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		if n >= 1 && n <= numReferences {
			c.InRange = append(c.InRange, n)
		} else {
			c.OutOfRange = append(c.OutOfRange, n)
		}
	}
	sort.Ints(c.InRange)
	sort.Ints(c.OutOfRange)
	return c
}

// StripOutOfRange removes every [n] marker that does not index a list of
// numReferences entries.
func StripOutOfRange(markdown string, numReferences int) string {
	return citeRe.ReplaceAllStringFunc(markdown, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err == nil && n >= 1 && n <= numReferences {
			return m
		}
		return ""
	})
}
