package mapfile

import (
	"fmt"

	"github.com/grafana/mapxqs/pkg/demangle"
)

// Flags holds the kind, category and status bits of a Record.
type Flags uint32

const (
	FlagModule Flags = 0x0001
	FlagSymbol Flags = 0x0002
	TypeMask   Flags = 0x000F

	CategoryMask = Flags(demangle.Mask)

	// SortMask selects the bits that take part in ordering records.
	SortMask = TypeMask | CategoryMask

	FlagUsed      Flags = 0x20000000
	FlagDuplicate Flags = 0x80000000
)

// RecordID identifies a record by its creation index in the Store.
type RecordID int32

// NoRecord is the zero reference.
const NoRecord RecordID = -1

// Record is a module or a public symbol read from a map listing.
type Record struct {
	Flags   Flags
	Segment uint8
	Offset  uint32
	Text    string
	// Owner is the enclosing module of a symbol, or the canonical record
	// of a duplicate module.
	Owner RecordID
}

func (r *Record) IsModule() bool  { return r.Flags&FlagModule != 0 }
func (r *Record) IsSymbol() bool  { return r.Flags&FlagSymbol != 0 }
func (r *Record) Used() bool      { return r.Flags&FlagUsed != 0 }
func (r *Record) Duplicate() bool { return r.Flags&FlagDuplicate != 0 }

func (r *Record) Category() demangle.Category {
	return demangle.Category(r.Flags & CategoryMask)
}

func (r *Record) String() string {
	kind := "symbol"
	if r.IsModule() {
		kind = "module"
	}
	return fmt.Sprintf("%s %04X:%08X %s", kind, r.Segment, r.Offset, r.Text)
}

// Store is the append-only record arena of a build. Records are never
// removed; duplicates are only flagged or redirected through Owner.
type Store struct {
	records []Record
	limit   int
}

// NewStore returns an empty store. A positive limit caps the number of
// records; zero means unlimited.
func NewStore(limit int) *Store {
	return &Store{limit: limit}
}

func (s *Store) Add(r Record) (RecordID, error) {
	if s.limit > 0 && len(s.records) >= s.limit {
		return NoRecord, fmt.Errorf("%w: %d records", ErrAllocation, s.limit)
	}
	s.records = append(s.records, r)
	return RecordID(len(s.records) - 1), nil
}

// Get returns the record with the given id. The pointer stays valid until
// the next Add.
func (s *Store) Get(id RecordID) *Record {
	return &s.records[id]
}

func (s *Store) Len() int { return len(s.records) }

// IDs returns the ids of the records matching keep, in creation order,
// starting at from.
func (s *Store) IDs(from int, keep func(*Record) bool) []RecordID {
	ids := make([]RecordID, 0, len(s.records)-from)
	for i := from; i < len(s.records); i++ {
		if keep == nil || keep(&s.records[i]) {
			ids = append(ids, RecordID(i))
		}
	}
	return ids
}
