package grading

import (
	"sort"
	"strconv"
)

// Score pairs an identifier with a value to be ranked.
type Score struct {
	ID    string
	Value float64
}

// Rank assigns standard competition positions (1, 2, 2, 4) ordered by
// descending value. Ties share the better position. Input order does not
// matter; the result is keyed by ID.
func Rank(scores []Score) map[string]int {
	sorted := make([]Score, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value == sorted[j].Value {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Value > sorted[j].Value
	})
	positions := make(map[string]int, len(sorted))
	for i, s := range sorted {
		if i > 0 && s.Value == sorted[i-1].Value {
			positions[s.ID] = positions[sorted[i-1].ID]
			continue
		}
		positions[s.ID] = i + 1
	}
	return positions
}

// Ordinal renders 1 -> "1st", 2 -> "2nd", 11 -> "11th", 23 -> "23rd".
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
