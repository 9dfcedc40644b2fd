// ABOUTME: Inverted index over the primary table: value -> entity id set
// ABOUTME: Full rebuild only; search distinguishes no-matches from no-index

package histdb

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nainya/chronostore/pkg/codec"
)

// CaseSensitivity selects how data values are normalized for the index.
type CaseSensitivity uint8

const (
	CaseSensitive CaseSensitivity = iota
	CaseInsensitive
)

func (cs CaseSensitivity) String() string {
	if cs == CaseInsensitive {
		return "insensitive"
	}
	return "sensitive"
}

func (cs CaseSensitivity) marker() byte {
	if cs == CaseInsensitive {
		return metaIndexInsensitive
	}
	return metaIndexSensitive
}

// normalize folds a value for indexing. The contract is Unicode simple
// lowercasing of valid UTF-8; insensitive operations reject anything else
// so that the index round-trips exactly.
func (cs CaseSensitivity) normalize(value []byte) ([]byte, error) {
	if cs != CaseInsensitive {
		return value, nil
	}
	if !utf8.Valid(value) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUTF8, value)
	}
	return []byte(strings.ToLower(string(value))), nil
}

// MakeIndex scans the whole primary table and rebuilds the inverted index
// for the given case sensitivity. The rebuild is destructive: entries left
// by a previous run with a different sensitivity are superseded key by key,
// not removed. Not atomic with respect to concurrent Put calls; an index
// built mid-write may miss in-flight observations.
func (db *DB) MakeIndex(cs CaseSensitivity) (err error) {
	start := time.Now()
	defer func() { db.met.RecordOperation("make_index", start, err) }()

	groups := make(map[string]map[uint64]struct{})
	err = db.kv.IteratePrefix([]byte{codec.TagPrimary}, func(key, _ []byte) error {
		id, data, err := codec.SplitPrimaryKey(key)
		if err != nil {
			return err
		}
		norm, err := cs.normalize(data)
		if err != nil {
			return err
		}
		set, ok := groups[string(norm)]
		if !ok {
			set = make(map[uint64]struct{})
			groups[string(norm)] = set
		}
		set[id] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}

	for value, set := range groups {
		ids := make([]uint64, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		if err = db.kv.Put(codec.IndexKey([]byte(value)), codec.EncodeIDSet(ids)); err != nil {
			return err
		}
	}

	// The marker is written last: a rebuild aborted by an I/O failure leaves
	// the index region incomplete and must not mark the sensitivity as built.
	var stamp [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(time.Now().Unix()))
	if err = db.kv.Put(codec.MetaKey(cs.marker()), stamp[:]); err != nil {
		return err
	}

	db.met.IndexBuildsTotal.Inc()
	db.met.IndexValuesLast.Set(float64(len(groups)))
	db.log.Info().
		Str("case", cs.String()).
		Int("values", len(groups)).
		Dur("elapsed", time.Since(start)).
		Msg("index rebuilt")
	return nil
}

// Search returns the entity ids observed with the given value, in ascending
// numeric order. An indexed value with no matches yields an empty slice;
// a sensitivity that was never indexed yields ErrIndexNotBuilt.
func (db *DB) Search(value []byte, cs CaseSensitivity) (ids []uint64, err error) {
	start := time.Now()
	defer func() { db.met.RecordOperation("search", start, err) }()
	db.met.SearchQueriesTotal.Inc()

	built, err := db.indexBuilt(cs)
	if err != nil {
		return nil, err
	}
	if !built {
		return nil, fmt.Errorf("%w: case %s", ErrIndexNotBuilt, cs)
	}

	norm, err := cs.normalize(value)
	if err != nil {
		return nil, err
	}

	raw, ok, err := db.kv.Get(codec.IndexKey(norm))
	if err != nil {
		return nil, err
	}
	if !ok {
		return []uint64{}, nil
	}

	ids, err = codec.DecodeIDSet(raw)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		db.met.SearchHitsTotal.Inc()
	}
	return ids, nil
}

// SearchString is Search for UTF-8 text values.
func (db *DB) SearchString(value string, cs CaseSensitivity) ([]uint64, error) {
	return db.Search([]byte(value), cs)
}

// LastIndexed reports when the index for cs was last rebuilt.
func (db *DB) LastIndexed(cs CaseSensitivity) (time.Time, bool, error) {
	raw, ok, err := db.kv.Get(codec.MetaKey(cs.marker()))
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	if len(raw) != 8 {
		return time.Time{}, false, fmt.Errorf("%w: index marker %d bytes", codec.ErrMalformedValue, len(raw))
	}
	return time.Unix(int64(binary.BigEndian.Uint64(raw)), 0), true, nil
}

func (db *DB) indexBuilt(cs CaseSensitivity) (bool, error) {
	_, ok, err := db.kv.Get(codec.MetaKey(cs.marker()))
	return ok, err
}
