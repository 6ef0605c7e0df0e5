package crawler

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSetBindsCanonicalFieldsCaseInsensitive(t *testing.T) {
	t.Parallel()

	var r Record
	r.Set("first name", "Jane")
	r.Set("EMAIL ADDRESS", "jane@example.org")
	r.Set("Room", "12B")
	r.Set("Phone", "555-0100")
	r.Set("Grade", "3")

	assert.Equal(t, "Jane", r.FirstName)
	assert.Equal(t, "555-0100", r.SchoolPhone)
	assert.Equal(t, "3", r.GradeLevel)
	assert.Equal(t, "jane@example.org", r.Email)
	assert.Equal(t, map[string]string{"Room": "12B"}, r.Extra)
}

func TestRecordSetIgnoresBlankFieldName(t *testing.T) {
	t.Parallel()

	var r Record
	r.Set("", "photo.png")
	r.Set("   ", "icon")

	assert.Nil(t, r.Extra)
	assert.Equal(t, CanonicalFields, r.Keys())
}

func TestRecordMapEmitsEveryCanonicalKey(t *testing.T) {
	t.Parallel()

	r := Record{FirstName: "Jane", Extra: map[string]string{"Room": "12B"}}
	m := r.Map()

	for _, k := range CanonicalFields {
		_, ok := m[k]
		require.True(t, ok, "missing canonical key %q", k)
	}
	assert.Equal(t, "Jane", m[FieldFirstName])
	assert.Nil(t, m[FieldLastName])
	assert.Equal(t, "12B", m["Room"])
}

func TestRecordKeysOrder(t *testing.T) {
	t.Parallel()

	r := Record{Extra: map[string]string{"Zeta": "1", "Alpha": "2"}}
	keys := r.Keys()

	require.Len(t, keys, len(CanonicalFields)+2)
	assert.Equal(t, CanonicalFields, keys[:len(CanonicalFields)])
	assert.Equal(t, []string{"Alpha", "Zeta"}, keys[len(CanonicalFields):])
}

func TestRecordMarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Record{LastName: "Smith", State: "Alabama"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Smith", decoded[FieldLastName])
	assert.Equal(t, "Alabama", decoded[FieldState])
	v, ok := decoded[FieldHonorific]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestSeedListFrom(t *testing.T) {
	t.Parallel()

	seeds := SeedList{{Position: 1}, {Position: 2}, {Position: 3}}

	tests := []struct {
		start int
		want  int
	}{
		{start: 0, want: 3},
		{start: 1, want: 3},
		{start: 3, want: 1},
		{start: 4, want: 0},
	}
	for _, tc := range tests {
		assert.Len(t, seeds.From(tc.start), tc.want, "start=%d", tc.start)
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("seed 4: %w", &StageError{Stage: StageFetchingRoot, Err: ErrNetwork})

	require.ErrorIs(t, err, ErrNetwork)
	stage, ok := FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, StageFetchingRoot, stage)
	assert.Contains(t, err.Error(), "fetching_root: network error")

	_, ok = FailedStage(errors.New("plain"))
	assert.False(t, ok)
}

func TestParseDocument(t *testing.T) {
	t.Parallel()

	doc, err := ParseDocument("http://example.org", []byte(`<html><body><h1 id="x">Hi</h1></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "http://example.org", doc.URL)
	assert.Equal(t, "Hi", doc.Find("#x").Text())
}
