package dependr

import (
	"sort"
	"strings"
)

// unlabeled stands in for an app or env label a workload does not carry.
const unlabeled = "unlabeled"

func containsString(strSlice []string, searchStr string) bool {
	for _, value := range strSlice {
		if value == searchStr {
			return true
		}
	}
	return false
}

// dedupeString drops repeated values while keeping first-seen order.
func dedupeString(strSlice []string) []string {
	var returnSlice []string
	seen := make(map[string]bool, len(strSlice))
	for _, value := range strSlice {
		if !seen[value] {
			seen[value] = true
			returnSlice = append(returnSlice, value)
		}
	}
	return returnSlice
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// orLabel returns v, or the unlabeled placeholder when v is blank.
func orLabel(v string) string {
	if strings.TrimSpace(v) == "" {
		return unlabeled
	}
	return v
}
