package roster

import "sort"

// SortByName orders teachers in place by FullName. Ties keep their
// relative order.
func SortByName(teachers []Teacher, ascending bool) {
	sort.SliceStable(teachers, func(i, j int) bool {
		if ascending {
			return teachers[i].FullName < teachers[j].FullName
		}
		return teachers[i].FullName > teachers[j].FullName
	})
}

// Toggle is the name-sort direction switch behind the "sort by name"
// control. The zero value is not ready for use; call [NewToggle].
type Toggle struct {
	ascending bool
}

// NewToggle returns a Toggle whose first application sorts ascending.
func NewToggle() *Toggle {
	return &Toggle{ascending: true}
}

// Apply sorts teachers in place using the current direction, then flips
// the direction for the next call. It reports the direction it used.
func (t *Toggle) Apply(teachers []Teacher) (ascending bool) {
	ascending = t.ascending
	SortByName(teachers, ascending)
	t.ascending = !t.ascending
	return ascending
}

// Next reports the direction the next [Toggle.Apply] will use.
func (t *Toggle) Next() (ascending bool) {
	return t.ascending
}
