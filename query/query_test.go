package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	return doc
}

func TestMatch(t *testing.T) {
	doc := decode(t, `{
		"EntryType": "Drug",
		"Gender": "Male",
		"AgeLowerBound": 30,
		"AgeUpperBound": 39,
		"RegimenDrugs": [{"DrugId": 7, "DrugName": "a"}, {"DrugId": 42, "DrugName": "b"}],
		"Races": ["", "white"]
	}`)

	tests := []struct {
		name    string
		clauses []Clause
		want    bool
	}{
		{"no clauses", nil, true},
		{"eq string", []Clause{Where("EntryType", Eq, "Drug")}, true},
		{"eq string miss", []Clause{Where("EntryType", Eq, "Regimen")}, false},
		{"eq is case sensitive", []Clause{Where("Gender", Eq, "male")}, false},
		{"eqfold", []Clause{Where("Gender", EqFold, "MALE")}, true},
		{"range", []Clause{Where("AgeLowerBound", Le, 35), Where("AgeUpperBound", Ge, 35)}, true},
		{"range outside", []Clause{Where("AgeLowerBound", Le, 40), Where("AgeUpperBound", Ge, 40)}, false},
		{"lt", []Clause{Where("AgeLowerBound", Lt, 30)}, false},
		{"gt", []Clause{Where("AgeUpperBound", Gt, 38)}, true},
		{"ne", []Clause{Where("EntryType", Ne, "Regimen")}, true},
		{"array any element", []Clause{Where("RegimenDrugs.DrugId", Eq, 42)}, true},
		{"array no element", []Clause{Where("RegimenDrugs.DrugId", Eq, 43)}, false},
		{"terminal array", []Clause{Where("Races", Eq, "white")}, true},
		{"missing field", []Clause{Where("Nope", Ne, "x")}, false},
		{"kind mismatch", []Clause{Where("AgeLowerBound", Eq, "30")}, false},
		{"in strings", []Clause{Where("EntryType", In, []string{"Regimen", "Drug"})}, true},
		{"in ints", []Clause{Where("AgeLowerBound", In, []int{1, 2})}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(doc, tt.clauses, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchParams(t *testing.T) {
	doc := decode(t, `{"AgeLowerBound": 0, "AgeUpperBound": 1, "Gender": "female"}`)
	clauses := []Clause{
		Where("AgeLowerBound", Le, Param("age")),
		Where("AgeUpperBound", Ge, Param("age")),
		Where("Gender", EqFold, Param("gender")),
	}

	ok, err := Match(doc, clauses, map[string]any{"age": 1, "gender": "Female"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(doc, clauses, map[string]any{"age": 2, "gender": "Female"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Match(doc, clauses, map[string]any{"gender": "Female"})
	assert.Error(t, err)
}

func TestInRequiresSlice(t *testing.T) {
	_, err := Match(map[string]any{"id": "a"}, []Clause{Where("id", In, "a")}, nil)
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare(nil, nil))
	assert.Equal(t, -1, Compare(nil, false))
	assert.Equal(t, -1, Compare(false, true))
	assert.Equal(t, -1, Compare(true, 1))
	assert.Equal(t, -1, Compare(2, 10))
	assert.Equal(t, 0, Compare(3, float64(3)))
	assert.Equal(t, 1, Compare("b", "a"))
	assert.Equal(t, 1, Compare("a", 1e9))
}

func TestValue(t *testing.T) {
	doc := decode(t, `{"a": {"b": 1}, "arr": [1, 2]}`)

	v, ok := Value(doc, "a.b")
	require.True(t, ok)
	assert.Equal(t, float64(1), v)

	v, ok = Value(doc, "arr")
	require.True(t, ok)
	assert.Len(t, v, 2)

	_, ok = Value(doc, "a.c")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, ValidateField("RegimenDrugs.DrugId"))
	assert.Error(t, ValidateField(""))
	assert.Error(t, ValidateField("a..b"))
	assert.Error(t, ValidateField("body'); drop table documents; --"))

	q := Query{Filters: []Clause{{Field: "Name", Op: "like"}}}
	assert.Error(t, q.Validate())

	q = Query{Order: Order{Field: "Name"}, Limit: 3}
	assert.NoError(t, q.Validate())

	s := Statement{Where: []Clause{Where("Gender", EqFold, Param("gender"))}}
	assert.Error(t, s.Validate())

	s.Params = map[string]any{"gender": "male"}
	assert.NoError(t, s.Validate())

	s.Sums = []string{"Improved"}
	assert.Error(t, s.Validate())

	s.GroupBy = []string{"DrugName"}
	assert.NoError(t, s.Validate())
}
