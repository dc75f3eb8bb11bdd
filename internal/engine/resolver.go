package engine

import (
	"sort"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
)

// ResolveTargets filters an account's stored targets to those gated for
// auto-enroll and orders them by ascending priority. The sort is stable so
// equal priorities keep their stored order across runs.
func ResolveTargets(targets []models.CourseTarget) []models.CourseTarget {
	resolved := make([]models.CourseTarget, 0, len(targets))
	for _, t := range targets {
		if t.AutoEnroll {
			resolved = append(resolved, t)
		}
	}
	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].Priority < resolved[j].Priority
	})
	return resolved
}
