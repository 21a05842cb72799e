package ddragon

import (
	"slices"
	"strconv"
	"strings"
)

// ClosestPatch picks the available version nearest to target. An exact match
// wins; otherwise versions are compared at their first differing numeric
// segment and the smallest gap is taken, earliest in the list on ties.
func ClosestPatch(target string, available []string) string {
	if len(available) == 0 {
		return ""
	}
	if slices.Contains(available, target) {
		return target
	}

	best := available[0]
	bestDiff := abs(compareVersions(target, best))
	for _, v := range available[1:] {
		if d := abs(compareVersions(target, v)); d < bestDiff {
			best, bestDiff = v, d
		}
	}
	return best
}

// compareVersions returns the difference of the first numeric segment that
// differs between a and b, or 0 when they are equal. Missing segments count
// as 0 and non-digit characters are ignored.
func compareVersions(a, b string) int {
	pa, pb := versionParts(a), versionParts(b)
	for i := 0; i < max(len(pa), len(pb)); i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			return x - y
		}
	}
	return 0
}

func versionParts(v string) []int {
	clean := strings.Map(func(r rune) rune {
		if r == '.' || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, v)

	segs := strings.Split(clean, ".")
	out := make([]int, len(segs))
	for i, s := range segs {
		out[i], _ = strconv.Atoi(s)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
