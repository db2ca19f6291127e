package catalogs

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Suggest returns the known id closest to a mistyped one, or "" when nothing is close enough.
func Suggest(id string, known []string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" || len(known) == 0 {
		return ""
	}
	type scored struct {
		val  string
		dist int
	}
	var results []scored
	for _, cand := range known {
		if cand == id {
			return cand
		}
		if strings.HasPrefix(cand, id) && len(id) >= 2 {
			results = append(results, scored{val: cand, dist: 0})
			continue
		}
		dist := levenshtein.ComputeDistance(id, cand)
		if dist > suggestLimit(len(cand)) {
			continue
		}
		results = append(results, scored{val: cand, dist: dist})
	}
	if len(results) == 0 {
		return ""
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].dist == results[j].dist {
			return results[i].val < results[j].val
		}
		return results[i].dist < results[j].dist
	})
	return results[0].val
}

func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
