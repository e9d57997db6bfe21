package diff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDiff(t *testing.T, base, next string) *Delta {
	t.Helper()
	d, err := Diff(json.RawMessage(base), json.RawMessage(next))
	require.NoError(t, err)
	return d
}

func TestDiffIdenticalSnapshotsIsEmpty(t *testing.T) {
	d := mustDiff(t,
		`{"party_a":"Acme","term_months":12,"confidential":true}`,
		`{"party_a":"Acme","term_months":12,"confidential":true}`)
	assert.True(t, d.Empty())
	assert.Empty(t, d.Changes())
}

func TestDiffModifiedScalar(t *testing.T) {
	d := mustDiff(t, `{"party_b":"Globex"}`, `{"party_b":"Initech"}`)
	require.Len(t, d.Changes(), 1)
	ch := d.Changes()[0]
	assert.Equal(t, "/party_b", ch.Path)
	assert.Equal(t, "Globex", ch.Before)
	assert.Equal(t, "Initech", ch.After)
	assert.Equal(t, Modified, ch.Kind)
}

func TestDiffAddedAndDeleted(t *testing.T) {
	d := mustDiff(t, `{"old_field":"x"}`, `{"new_field":"y"}`)
	require.Len(t, d.Changes(), 2)
	assert.Equal(t, FieldChange{Path: "/new_field", After: "y", Kind: Added}, d.Changes()[0])
	assert.Equal(t, FieldChange{Path: "/old_field", Before: "x", Kind: Deleted}, d.Changes()[1])
}

// An explicit empty string is a real value: it is only "added" when
// the field was truly absent before, and "" -> "x" is a modification,
// never an addition.
func TestDiffEmptyStringIsNotAbsence(t *testing.T) {
	d := mustDiff(t, `{}`, `{"notes":""}`)
	require.Len(t, d.Changes(), 1)
	assert.Equal(t, Added, d.Changes()[0].Kind)
	assert.Equal(t, "", d.Changes()[0].After)

	d = mustDiff(t, `{"notes":""}`, `{"notes":"call me"}`)
	require.Len(t, d.Changes(), 1)
	assert.Equal(t, Modified, d.Changes()[0].Kind)
	assert.Equal(t, "", d.Changes()[0].Before)

	d = mustDiff(t, `{"notes":""}`, `{"notes":""}`)
	assert.True(t, d.Empty())

	// Explicit null is likewise a value distinct from "".
	d = mustDiff(t, `{"notes":null}`, `{"notes":""}`)
	require.Len(t, d.Changes(), 1)
	assert.Equal(t, Modified, d.Changes()[0].Kind)
}

func TestDiffNestedObjectsRecursePathwise(t *testing.T) {
	d := mustDiff(t,
		`{"party_b":{"name":"Globex","address":"1 Main St"}}`,
		`{"party_b":{"name":"Globex","address":"2 Oak Ave"}}`)
	require.Len(t, d.Changes(), 1)
	assert.Equal(t, "/party_b/address", d.Changes()[0].Path)
	assert.Equal(t, "1 Main St", d.Changes()[0].Before)
	assert.Equal(t, "2 Oak Ave", d.Changes()[0].After)
}

func TestDiffAddedNestedObjectFlattensPerLeaf(t *testing.T) {
	d := mustDiff(t, `{}`, `{"party_b":{"name":"Globex","address":"1 Main St"}}`)
	require.Len(t, d.Changes(), 2)
	assert.Equal(t, "/party_b/name", d.Changes()[0].Path)
	assert.Equal(t, "/party_b/address", d.Changes()[1].Path)
	for _, ch := range d.Changes() {
		assert.Equal(t, Added, ch.Kind)
	}
}

// Change lists follow the field declaration order of the next
// snapshot, with deletions appended in base order, so summaries are
// stable across runs.
func TestDiffOrderIsDeclarationOrderOfNext(t *testing.T) {
	d := mustDiff(t,
		`{"a":1,"dropped_1":1,"b":2,"dropped_2":2}`,
		`{"z_first":1,"b":3,"a":1,"added_last":4}`)
	var paths []string
	for _, ch := range d.Changes() {
		paths = append(paths, ch.Path)
	}
	assert.Equal(t, []string{"/z_first", "/b", "/added_last", "/dropped_1", "/dropped_2"}, paths)

	// Same inputs, same output, every time.
	for i := 0; i < 20; i++ {
		again := mustDiff(t,
			`{"a":1,"dropped_1":1,"b":2,"dropped_2":2}`,
			`{"z_first":1,"b":3,"a":1,"added_last":4}`)
		assert.Equal(t, d.Changes(), again.Changes())
	}
}

func TestDiffArraysAreOpaqueValues(t *testing.T) {
	d := mustDiff(t, `{"clauses":["a","b"]}`, `{"clauses":["a","c"]}`)
	require.Len(t, d.Changes(), 1)
	assert.Equal(t, Modified, d.Changes()[0].Kind)
	assert.Equal(t, []any{"a", "b"}, d.Changes()[0].Before)
	assert.Equal(t, []any{"a", "c"}, d.Changes()[0].After)

	d = mustDiff(t, `{"clauses":["a","b"]}`, `{"clauses":["a","b"]}`)
	assert.True(t, d.Empty())
}

func TestDiffTypeChangeIsModification(t *testing.T) {
	d := mustDiff(t, `{"term":"12"}`, `{"term":12}`)
	require.Len(t, d.Changes(), 1)
	assert.Equal(t, Modified, d.Changes()[0].Kind)

	d = mustDiff(t, `{"party_b":"Globex"}`, `{"party_b":{"name":"Globex"}}`)
	require.Len(t, d.Changes(), 1)
	assert.Equal(t, Modified, d.Changes()[0].Kind)
}

func TestDiffEmptyAndNullSnapshots(t *testing.T) {
	d := mustDiff(t, ``, `{"a":1}`)
	require.Len(t, d.Changes(), 1)
	assert.Equal(t, Added, d.Changes()[0].Kind)

	d = mustDiff(t, `null`, `null`)
	assert.True(t, d.Empty())
}

func TestDiffRejectsNonObjectSnapshot(t *testing.T) {
	_, err := Diff(json.RawMessage(`[1,2]`), json.RawMessage(`{}`))
	assert.Error(t, err)
	_, err = Diff(json.RawMessage(`{}`), json.RawMessage(`"text"`))
	assert.Error(t, err)
}

// Diff is lossless for field changes: applying the change list back
// onto the base reconstructs every differing field of next.
func TestDiffApplyRoundTrip(t *testing.T) {
	base := json.RawMessage(`{"party_a":"Acme","party_b":{"name":"Globex","address":"1 Main St"},"term_months":12,"obsolete":"x"}`)
	next := json.RawMessage(`{"party_a":"Acme","party_b":{"name":"Initech","address":"1 Main St","signer":"Peter"},"term_months":24}`)

	d, err := Diff(base, next)
	require.NoError(t, err)

	rebuilt, err := Apply(base, d.Changes())
	require.NoError(t, err)

	var got, want map[string]any
	require.NoError(t, json.Unmarshal(rebuilt, &got))
	require.NoError(t, json.Unmarshal(next, &want))
	assert.Equal(t, want, got)

	// And the rebuilt snapshot now diffs clean against next.
	again, err := Diff(rebuilt, next)
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestDeltaMarshalJSON(t *testing.T) {
	d := mustDiff(t, `{"a":1}`, `{"a":1}`)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))

	d = mustDiff(t, `{"a":1}`, `{"a":2}`)
	b, err = json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"path":"/a","before":1,"after":2,"kind":"modified"}]`, string(b))
}

func TestFormatFieldPath(t *testing.T) {
	assert.Equal(t, "Party B / Address", FormatFieldPath("/party_b/address"))
	assert.Equal(t, "Term Months", FormatFieldPath("/term_months"))
}
