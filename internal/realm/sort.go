package realm

import "github.com/roach88/rowbind/internal/queryir"

// SortDescriptor orders results by one property. Reversed flips only the
// direction.
type SortDescriptor = queryir.SortDescriptor

// Ascending returns an ascending descriptor on property.
func Ascending(property string) SortDescriptor {
	return SortDescriptor{Property: property, Ascending: true}
}

// Descending returns a descending descriptor on property.
func Descending(property string) SortDescriptor {
	return SortDescriptor{Property: property, Ascending: false}
}
