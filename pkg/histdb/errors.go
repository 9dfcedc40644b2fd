// ABOUTME: Sentinel errors for the histdb public surface
// ABOUTME: Decode and I/O failures from lower layers are wrapped, never swallowed

package histdb

import "errors"

var (
	// ErrIndexNotBuilt indicates a search for a case sensitivity that has
	// never been indexed; distinguished from an empty result on purpose
	ErrIndexNotBuilt = errors.New("histdb: index not built")

	// ErrVariantMismatch indicates the store was created under a different
	// temporal variant than the one requested at open
	ErrVariantMismatch = errors.New("histdb: temporal variant mismatch")

	// ErrCorruptDescriptor indicates a damaged store descriptor record
	ErrCorruptDescriptor = errors.New("histdb: corrupt store descriptor")

	// ErrInvalidUTF8 indicates a value that cannot be case-folded
	ErrInvalidUTF8 = errors.New("histdb: invalid utf-8 in value")
)
