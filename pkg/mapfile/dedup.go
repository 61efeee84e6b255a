package mapfile

import (
	"cmp"
	"slices"
	"strings"
)

func compareAddress(a, b *Record) int {
	if c := cmp.Compare(a.Segment, b.Segment); c != 0 {
		return c
	}
	return cmp.Compare(a.Offset, b.Offset)
}

func compareModules(a, b *Record) int {
	if c := cmp.Compare(a.Flags&SortMask, b.Flags&SortMask); c != 0 {
		return c
	}
	if c := strings.Compare(a.Text, b.Text); c != 0 {
		return c
	}
	return compareAddress(a, b)
}

func compareSymbols(a, b *Record) int {
	if c := compareAddress(a, b); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Flags&SortMask, b.Flags&SortMask); c != 0 {
		return c
	}
	return strings.Compare(a.Text, b.Text)
}

// DedupModules points every module whose name repeats an earlier one (in
// name order, ties broken by address) at that first record through Owner.
// It returns the number of records newly redirected.
func DedupModules(store *Store) int {
	ids := store.IDs(0, (*Record).IsModule)
	if len(ids) < 2 {
		return 0
	}
	slices.SortStableFunc(ids, func(a, b RecordID) int {
		return compareModules(store.Get(a), store.Get(b))
	})
	var n int
	canonical := ids[0]
	for _, id := range ids[1:] {
		r := store.Get(id)
		if r.Text != store.Get(canonical).Text {
			canonical = id
			continue
		}
		if r.Owner != canonical {
			r.Owner = canonical
			n++
		}
	}
	return n
}

// DedupSymbols flags every symbol created at or after from that has the same
// address, category and name as another one. The first unflagged record of
// each run survives. It returns the number of records newly flagged.
func DedupSymbols(store *Store, from int) int {
	ids := store.IDs(from, (*Record).IsSymbol)
	slices.SortStableFunc(ids, func(a, b RecordID) int {
		return compareSymbols(store.Get(a), store.Get(b))
	})
	var n int
	for i := 0; i < len(ids); {
		j := i + 1
		for j < len(ids) && compareSymbols(store.Get(ids[i]), store.Get(ids[j])) == 0 {
			j++
		}
		kept := false
		for _, id := range ids[i:j] {
			r := store.Get(id)
			if r.Duplicate() {
				continue
			}
			if !kept {
				kept = true
				continue
			}
			r.Flags |= FlagDuplicate
			n++
		}
		i = j
	}
	return n
}
