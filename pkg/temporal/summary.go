// ABOUTME: Temporal summaries describing when an association was observed
// ABOUTME: Range keeps first/last seen; Instances keeps every distinct timestamp

package temporal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Variant selects the summary representation for a store instance.
// It is chosen at store creation and fixed for the life of the store;
// the persisted bytes alone do not identify it.
type Variant uint8

const (
	// VariantRange compresses observations into a first/last-seen pair
	VariantRange Variant = 1

	// VariantInstances keeps every distinct observation timestamp
	VariantInstances Variant = 2
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantRange || v == VariantInstances
}

func (v Variant) String() string {
	switch v {
	case VariantRange:
		return "range"
	case VariantInstances:
		return "instances"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// ErrSchemaMismatch indicates value bytes whose shape does not fit the
// store's configured variant
var ErrSchemaMismatch = errors.New("temporal: value bytes do not match store variant")

// Summary records when an (entity, value) association has been observed.
// Implementations are Range and Instances.
type Summary interface {
	Variant() Variant

	// First and Last report the earliest and latest observed timestamp.
	First() uint32
	Last() uint32

	// Observe folds one observation into the summary. Observing the same
	// timestamp twice is a no-op.
	Observe(ts uint32)

	// Append serializes the summary onto dst and returns the extended slice.
	Append(dst []byte) []byte
}

// New seeds a summary of the given variant with a first observation.
func New(v Variant, ts uint32) Summary {
	switch v {
	case VariantInstances:
		return NewInstances(ts)
	default:
		return NewRange(ts)
	}
}

// Decode parses value bytes under the given variant.
func Decode(v Variant, value []byte) (Summary, error) {
	switch v {
	case VariantRange:
		return DecodeRange(value)
	case VariantInstances:
		return DecodeInstances(value)
	default:
		return nil, fmt.Errorf("temporal: unknown variant %d", v)
	}
}

// Range is a first/last-seen pair. Invariant: first <= last.
type Range struct {
	first uint32
	last  uint32
}

// NewRange creates a range covering a single observation.
func NewRange(ts uint32) *Range {
	return &Range{first: ts, last: ts}
}

func (r *Range) Variant() Variant { return VariantRange }
func (r *Range) First() uint32    { return r.first }
func (r *Range) Last() uint32     { return r.last }

func (r *Range) Observe(ts uint32) {
	if ts < r.first {
		r.first = ts
	}
	if ts > r.last {
		r.last = ts
	}
}

func (r *Range) Append(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, r.first)
	return binary.BigEndian.AppendUint32(dst, r.last)
}

// DecodeRange parses the 8-byte first/last layout.
func DecodeRange(value []byte) (*Range, error) {
	if len(value) != 8 {
		return nil, fmt.Errorf("%w: range needs 8 bytes, got %d", ErrSchemaMismatch, len(value))
	}
	return &Range{
		first: binary.BigEndian.Uint32(value[0:4]),
		last:  binary.BigEndian.Uint32(value[4:8]),
	}, nil
}

// Instances is an ordered set of distinct observation timestamps,
// strictly increasing, no duplicates.
type Instances struct {
	times []uint32
}

// NewInstances creates a set holding a single observation.
func NewInstances(ts uint32) *Instances {
	return &Instances{times: []uint32{ts}}
}

func (s *Instances) Variant() Variant { return VariantInstances }
func (s *Instances) First() uint32    { return s.times[0] }
func (s *Instances) Last() uint32     { return s.times[len(s.times)-1] }

// Times returns the observation timestamps in ascending order.
// The slice is owned by the summary; callers must not modify it.
func (s *Instances) Times() []uint32 { return s.times }

func (s *Instances) Observe(ts uint32) {
	i := sort.Search(len(s.times), func(i int) bool { return s.times[i] >= ts })
	if i < len(s.times) && s.times[i] == ts {
		return
	}
	s.times = append(s.times, 0)
	copy(s.times[i+1:], s.times[i:])
	s.times[i] = ts
}

func (s *Instances) Append(dst []byte) []byte {
	for _, ts := range s.times {
		dst = binary.BigEndian.AppendUint32(dst, ts)
	}
	return dst
}

// DecodeInstances parses a concatenation of 4-byte timestamps.
func DecodeInstances(value []byte) (*Instances, error) {
	if len(value) == 0 || len(value)%4 != 0 {
		return nil, fmt.Errorf("%w: instances need a positive multiple of 4 bytes, got %d", ErrSchemaMismatch, len(value))
	}
	times := make([]uint32, len(value)/4)
	for i := range times {
		times[i] = binary.BigEndian.Uint32(value[i*4 : i*4+4])
	}
	return &Instances{times: times}, nil
}
