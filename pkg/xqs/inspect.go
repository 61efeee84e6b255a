package xqs

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

type SegmentSummary struct {
	Segment   uint16 `json:"segment" yaml:"segment"`
	Offset    uint32 `json:"offset" yaml:"offset"`
	EntrySize uint16 `json:"entrySize" yaml:"entrySize"`
	Symbols   uint32 `json:"symbols" yaml:"symbols"`
	Bytes     uint32 `json:"bytes" yaml:"bytes"`
}

// Summary describes a container without listing its symbols.
type Summary struct {
	Size       int64            `json:"size" yaml:"size"`
	Digest     string           `json:"digest" yaml:"digest"`
	Version    uint16           `json:"version" yaml:"version"`
	ModuleInfo bool             `json:"moduleInfo" yaml:"moduleInfo"`
	Modules    int              `json:"modules" yaml:"modules"`
	Symbols    int              `json:"symbols" yaml:"symbols"`
	Segments   []SegmentSummary `json:"segments" yaml:"segments"`
}

// Inspect decodes b and summarizes it. The digest is the xxhash64 of the
// whole container.
func Inspect(b []byte) (*Summary, error) {
	f, err := Decode(b)
	if err != nil {
		return nil, err
	}
	s := &Summary{
		Size:       f.Size,
		Digest:     fmt.Sprintf("%016x", xxhash.Sum64(b)),
		Version:    f.Header.Version,
		ModuleInfo: f.Table.ModuleInfo,
		Modules:    f.ModuleCount(),
		Symbols:    len(f.Table.Symbols),
		Segments:   make([]SegmentSummary, 0, len(f.Segments)),
	}
	for _, seg := range f.Segments {
		s.Segments = append(s.Segments, SegmentSummary{
			Segment:   seg.Segment,
			Offset:    seg.Offset,
			EntrySize: seg.EntrySize,
			Symbols:   seg.SymbolCount,
			Bytes:     seg.Bytes,
		})
	}
	return s, nil
}
