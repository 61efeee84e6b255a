package mapfile

import (
	"cmp"
	"slices"
)

// compareFold compares ASCII strings ignoring case.
func compareFold(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := cmp.Compare(lower(a[i]), lower(b[i])); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

func compareLinear(a, b *Record) int {
	if c := compareAddress(a, b); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Flags&SortMask, b.Flags&SortMask); c != 0 {
		return c
	}
	return compareFold(a.Text, b.Text)
}

// Linearize returns the ids of all non-duplicate records in address order.
// With attach set, one forward pass assigns each symbol to the module record
// preceding it (through the module's canonical record) and marks that module
// used; symbols before the first module get NoRecord.
func Linearize(store *Store, attach bool) []RecordID {
	ids := store.IDs(0, func(r *Record) bool { return !r.Duplicate() })
	slices.SortStableFunc(ids, func(a, b RecordID) int {
		return compareLinear(store.Get(a), store.Get(b))
	})
	if !attach {
		return ids
	}
	cursor := NoRecord
	for _, id := range ids {
		r := store.Get(id)
		switch {
		case r.IsModule():
			cursor = id
			if r.Owner != NoRecord {
				cursor = r.Owner
			}
		case r.IsSymbol():
			r.Owner = cursor
			if cursor != NoRecord {
				store.Get(cursor).Flags |= FlagUsed
			}
		}
	}
	return ids
}
