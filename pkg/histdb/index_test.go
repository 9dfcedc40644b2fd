// ABOUTME: Tests for the index engine and search path
// ABOUTME: Covers completeness, case folding, and the not-built / no-matches distinction

package histdb

import (
	"errors"
	"testing"

	"github.com/nainya/chronostore/pkg/temporal"
)

func expectIDs(t *testing.T, got []uint64, expected ...uint64) {
	t.Helper()

	if len(got) != len(expected) {
		t.Fatalf("Expected ids %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected ids %v, got %v", expected, got)
			return
		}
	}
}

func TestSearchSensitive(t *testing.T) {
	db := openTestDB(t, temporal.VariantInstances)
	loadObservations(t, db)

	if err := db.MakeIndex(CaseSensitive); err != nil {
		t.Fatalf("MakeIndex failed: %v", err)
	}

	ids, err := db.SearchString("foo", CaseSensitive)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	expectIDs(t, ids, 1)

	ids, err = db.SearchString("FOO", CaseSensitive)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	expectIDs(t, ids, 2)
}

func TestSearchInsensitiveCollapsesCase(t *testing.T) {
	db := openTestDB(t, temporal.VariantInstances)
	loadObservations(t, db)

	if err := db.MakeIndex(CaseInsensitive); err != nil {
		t.Fatalf("MakeIndex failed: %v", err)
	}

	// "foo" (entity 1) and "FOO" (entity 2) fold to the same index entry
	for _, query := range []string{"foo", "FOO", "Foo"} {
		ids, err := db.SearchString(query, CaseInsensitive)
		if err != nil {
			t.Fatalf("Search %q failed: %v", query, err)
		}
		expectIDs(t, ids, 1, 2)
	}
}

func TestSearchNoMatchesIsEmptyNotError(t *testing.T) {
	db := openTestDB(t, temporal.VariantRange)
	loadObservations(t, db)

	if err := db.MakeIndex(CaseInsensitive); err != nil {
		t.Fatalf("MakeIndex failed: %v", err)
	}

	ids, err := db.SearchString("unknown", CaseInsensitive)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no matches, got %v", ids)
	}
}

func TestSearchBeforeIndexBuilt(t *testing.T) {
	db := openTestDB(t, temporal.VariantRange)
	loadObservations(t, db)

	if _, err := db.SearchString("foo", CaseSensitive); !errors.Is(err, ErrIndexNotBuilt) {
		t.Fatalf("Expected ErrIndexNotBuilt, got %v", err)
	}

	// Building one sensitivity does not unlock the other
	if err := db.MakeIndex(CaseInsensitive); err != nil {
		t.Fatalf("MakeIndex failed: %v", err)
	}
	if _, err := db.SearchString("foo", CaseSensitive); !errors.Is(err, ErrIndexNotBuilt) {
		t.Fatalf("Expected ErrIndexNotBuilt for sensitive search, got %v", err)
	}
	if _, err := db.SearchString("foo", CaseInsensitive); err != nil {
		t.Fatalf("Insensitive search should work after its build: %v", err)
	}
}

func TestIndexCompleteness(t *testing.T) {
	db := openTestDB(t, temporal.VariantRange)
	loadObservations(t, db)

	if err := db.MakeIndex(CaseInsensitive); err != nil {
		t.Fatalf("MakeIndex failed: %v", err)
	}

	// Every primary entry must be reachable through the index
	err := db.Walk(func(id uint64, value []byte, _ temporal.Summary) error {
		ids, err := db.Search(value, CaseInsensitive)
		if err != nil {
			return err
		}
		for _, got := range ids {
			if got == id {
				return nil
			}
		}
		t.Errorf("Entity %d not found when searching %q", id, value)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
}

func TestIndexRebuildPicksUpNewObservations(t *testing.T) {
	db := openTestDB(t, temporal.VariantRange)
	loadObservations(t, db)

	if err := db.MakeIndex(CaseInsensitive); err != nil {
		t.Fatalf("MakeIndex failed: %v", err)
	}

	if err := db.Put(3, []byte("foo"), 77); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Stale until rebuilt
	ids, err := db.SearchString("foo", CaseInsensitive)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	expectIDs(t, ids, 1, 2)

	if err := db.MakeIndex(CaseInsensitive); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	ids, err = db.SearchString("foo", CaseInsensitive)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	expectIDs(t, ids, 1, 2, 3)
}

func TestMakeIndexRejectsInvalidUTF8(t *testing.T) {
	db := openTestDB(t, temporal.VariantRange)

	if err := db.Put(1, []byte{0xFF, 0xFE}, 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := db.MakeIndex(CaseInsensitive); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("Expected ErrInvalidUTF8, got %v", err)
	}

	// Sensitive indexing treats values as opaque bytes
	if err := db.MakeIndex(CaseSensitive); err != nil {
		t.Fatalf("Sensitive MakeIndex failed: %v", err)
	}
	ids, err := db.Search([]byte{0xFF, 0xFE}, CaseSensitive)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	expectIDs(t, ids, 1)
}

func TestLastIndexed(t *testing.T) {
	db := openTestDB(t, temporal.VariantRange)
	loadObservations(t, db)

	if _, built, err := db.LastIndexed(CaseSensitive); err != nil || built {
		t.Fatalf("Expected no build record, got built=%v err=%v", built, err)
	}

	if err := db.MakeIndex(CaseSensitive); err != nil {
		t.Fatalf("MakeIndex failed: %v", err)
	}

	when, built, err := db.LastIndexed(CaseSensitive)
	if err != nil {
		t.Fatalf("LastIndexed failed: %v", err)
	}
	if !built || when.IsZero() {
		t.Errorf("Expected a build timestamp, got built=%v when=%v", built, when)
	}
}

// The walkthrough from the project readme: two historical screen names for
// one account, case-insensitive lookup by either of them.
func TestScreenNameHistory(t *testing.T) {
	db := openTestDB(t, temporal.VariantRange)

	snapshots := []Observation{
		{EntityID: 770781940341288960, Value: []byte("RudyGiuliani"), Timestamp: 1577933499},
		{EntityID: 770781940341288960, Value: []byte("xxxxxxx37583982"), Timestamp: 1479920042},
		{EntityID: 6510972, Value: []byte("travisbrown"), Timestamp: 1643648042},
	}
	if err := db.PutBatch(snapshots); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	result, err := db.Get(770781940341288960)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 historical values, got %d", len(result))
	}
	expectRange(t, result, "RudyGiuliani", 1577933499, 1577933499)
	expectRange(t, result, "xxxxxxx37583982", 1479920042, 1479920042)

	if err := db.MakeIndex(CaseInsensitive); err != nil {
		t.Fatalf("MakeIndex failed: %v", err)
	}

	ids, err := db.SearchString("RuDYgiuLianI", CaseInsensitive)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	expectIDs(t, ids, 770781940341288960)

	ids, err = db.SearchString("RUDYGIULIANI", CaseInsensitive)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	expectIDs(t, ids, 770781940341288960)
}
