package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Order sorts tables so every table comes after the tables it references.
// Among tables that are ready at the same time, fewer rows go first, then
// name. References to tables outside the set are ignored here; Validate
// reports them.
func Order(tables []TableSpec) ([]TableSpec, error) {
	byName := make(map[string]TableSpec, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	indegree := make(map[string]int, len(tables))
	dependents := make(map[string][]string)
	for _, t := range tables {
		seen := make(map[string]bool)
		for _, fk := range t.ForeignKeys {
			if _, ok := byName[fk.ReferencesTable]; !ok || seen[fk.ReferencesTable] {
				continue
			}
			seen[fk.ReferencesTable] = true
			indegree[t.Name]++
			dependents[fk.ReferencesTable] = append(dependents[fk.ReferencesTable], t.Name)
		}
	}

	less := func(a, b TableSpec) bool {
		if a.RowCount != b.RowCount {
			return a.RowCount < b.RowCount
		}
		return a.Name < b.Name
	}

	var ready []TableSpec
	for _, t := range byName {
		if indegree[t.Name] == 0 {
			ready = append(ready, t)
		}
	}

	ordered := make([]TableSpec, 0, len(byName))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)
		for _, dep := range dependents[next.Name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, byName[dep])
			}
		}
	}

	if len(ordered) != len(byName) {
		var stuck []string
		for name, n := range indegree {
			if n > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return ordered, nil
}
