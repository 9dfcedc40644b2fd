// ABOUTME: Order-preserving binary codec for the flat keyspace
// ABOUTME: Tag byte partitions regions; all integers are fixed-width big-endian

package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Keyspace region tags. The tag byte is the first byte of every key and
// partitions the single flat keyspace into non-overlapping regions.
const (
	TagPrimary byte = 0x00 // (entity id, data value) -> temporal summary
	TagIndex   byte = 0x01 // normalized data value -> entity id set
	TagMeta    byte = 0xFF // store descriptor and index build markers
)

// primaryHeaderLen is the fixed primary key header: tag plus 8-byte entity id
const primaryHeaderLen = 1 + 8

var (
	// ErrMalformedKey indicates a key shorter than its fixed header or carrying the wrong region tag
	ErrMalformedKey = errors.New("codec: malformed key")

	// ErrMalformedValue indicates value bytes that violate the fixed-width layout
	ErrMalformedValue = errors.New("codec: malformed value")
)

// PrimaryKey encodes a primary table key: tag(1B) ++ entityID(8B BE) ++ value.
// Big-endian makes byte-lexicographic key order equal numeric id order, so a
// prefix scan over (tag, id) yields exactly one entity's entries in sorted order.
func PrimaryKey(entityID uint64, value []byte) []byte {
	key := make([]byte, primaryHeaderLen, primaryHeaderLen+len(value))
	key[0] = TagPrimary
	binary.BigEndian.PutUint64(key[1:], entityID)
	return append(key, value...)
}

// PrimaryPrefix returns the scan prefix covering every entry of one entity.
func PrimaryPrefix(entityID uint64) []byte {
	prefix := make([]byte, primaryHeaderLen)
	prefix[0] = TagPrimary
	binary.BigEndian.PutUint64(prefix[1:], entityID)
	return prefix
}

// SplitPrimaryKey decodes a primary key into its entity id and data value.
// The returned value aliases the input key.
func SplitPrimaryKey(key []byte) (uint64, []byte, error) {
	if len(key) < primaryHeaderLen {
		return 0, nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedKey, len(key), primaryHeaderLen)
	}
	if key[0] != TagPrimary {
		return 0, nil, fmt.Errorf("%w: tag 0x%02x is not the primary region", ErrMalformedKey, key[0])
	}
	return binary.BigEndian.Uint64(key[1:primaryHeaderLen]), key[primaryHeaderLen:], nil
}

// IndexKey encodes an index key: tag(1B) ++ normalized data value.
func IndexKey(normalized []byte) []byte {
	key := make([]byte, 0, 1+len(normalized))
	key = append(key, TagIndex)
	return append(key, normalized...)
}

// SplitIndexKey decodes an index key into its normalized data value.
func SplitIndexKey(key []byte) ([]byte, error) {
	if len(key) < 1 {
		return nil, fmt.Errorf("%w: empty key", ErrMalformedKey)
	}
	if key[0] != TagIndex {
		return nil, fmt.Errorf("%w: tag 0x%02x is not the index region", ErrMalformedKey, key[0])
	}
	return key[1:], nil
}

// MetaKey returns the key for one record in the meta region.
func MetaKey(record byte) []byte {
	return []byte{TagMeta, record}
}

// EncodeIDSet serializes a set of entity ids as 8-byte big-endian integers,
// ascending and deduplicated. The input slice is not modified.
func EncodeIDSet(ids []uint64) []byte {
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]byte, 0, 8*len(sorted))
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		out = binary.BigEndian.AppendUint64(out, id)
	}
	return out
}

// DecodeIDSet parses an index value back into entity ids.
func DecodeIDSet(value []byte) ([]uint64, error) {
	if len(value)%8 != 0 {
		return nil, fmt.Errorf("%w: id set length %d is not a multiple of 8", ErrMalformedValue, len(value))
	}
	ids := make([]uint64, len(value)/8)
	for i := range ids {
		ids[i] = binary.BigEndian.Uint64(value[i*8 : i*8+8])
	}
	return ids, nil
}
