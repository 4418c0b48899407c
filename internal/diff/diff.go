// Package diff computes set differences between two lists.
package diff

// Difference models the additions and removals found when comparing two
// lists.
type Difference[T comparable] struct {
	// Added holds the elements present in the new list but not the
	// current one.
	Added []T

	// Removed holds the elements present in the current list but not the
	// new one.
	Removed []T
}

// Analyze compares a new list against a current one. Element order
// follows the input lists; duplicates are reported once.
func Analyze[T comparable](newList, currentList []T) Difference[T] {
	return Difference[T]{
		Added:   except(newList, currentList),
		Removed: except(currentList, newList),
	}
}

// except returns the elements of a not present in b, preserving order.
func except[T comparable](a, b []T) []T {
	exclude := make(map[T]struct{}, len(b))
	for _, v := range b {
		exclude[v] = struct{}{}
	}

	var out []T
	seen := make(map[T]struct{}, len(a))
	for _, v := range a {
		if _, ok := exclude[v]; ok {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
