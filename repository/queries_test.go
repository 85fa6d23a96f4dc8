package repository

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/data"
)

type caseSpec struct {
	cureID       int
	lower, upper int
	gender       string
	outcome      string
	drugs        []entities.Drug
}

func tallies(outcome string) (int, int, int) {
	switch outcome {
	case entities.OutcomeImproved:
		return 1, 0, 0
	case entities.OutcomeDeteriorated:
		return 0, 1, 0
	case entities.OutcomeUndetermined:
		return 0, 0, 1
	}
	return 0, 0, 0
}

func seedCases(t *testing.T, drugs *DrugRepository, regimens *RegimenRepository, cases []caseSpec) {
	t.Helper()
	ctx := context.Background()
	for _, c := range cases {
		improved, deteriorated, undetermined := tallies(c.outcome)
		base := entities.EntryBase{
			CureID:          c.cureID,
			AgeLowerBound:   c.lower,
			AgeUpperBound:   c.upper,
			Gender:          c.gender,
			CountryTreated:  "USA",
			OutcomeComputed: c.outcome,
			Improved:        improved,
			Deteriorated:    deteriorated,
			Undetermined:    undetermined,
		}

		for _, d := range c.drugs {
			entry := &entities.DrugEntry{EntryBase: base, DrugID: d.DrugID, DrugName: d.DrugName}
			entry.Name = d.DrugName
			entry.EntryType = entities.EntryTypeDrug
			_, err := drugs.AddOrUpdate(ctx, entry)
			require.NoError(t, err)
		}

		regimen := &entities.RegimenEntry{EntryBase: base, RegimenID: c.cureID, RegimenDrugs: c.drugs}
		regimen.EntryType = entities.EntryTypeRegimen
		for i, d := range c.drugs {
			if i > 0 {
				regimen.RegimenName += "+"
			}
			regimen.RegimenName += d.DrugName
		}
		regimen.Name = regimen.RegimenName
		_, err := regimens.AddOrUpdate(ctx, regimen)
		require.NoError(t, err)
	}
}

func newRepos(t *testing.T) (*DrugRepository, *RegimenRepository) {
	t.Helper()
	store := data.NewMemoryStore()
	cache := data.NewContainerCache()
	drugs, err := NewDrugRepository(store, cache)
	require.NoError(t, err)
	regimens, err := NewRegimenRepository(store, cache)
	require.NoError(t, err)
	return drugs, regimens
}

var (
	ibuprofen = entities.Drug{DrugID: 42, DrugName: "ibuprofen"}
	heparin   = entities.Drug{DrugID: 3, DrugName: "heparin"}
)

func TestAggregateByAgeAndGender(t *testing.T) {
	drugs, regimens := newRepos(t)
	seedCases(t, drugs, regimens, []caseSpec{
		{cureID: 1, lower: 30, upper: 39, gender: "male", outcome: "improved", drugs: []entities.Drug{ibuprofen}},
		{cureID: 2, lower: 30, upper: 39, gender: "Male", outcome: "deteriorated", drugs: []entities.Drug{heparin, ibuprofen}},
		{cureID: 3, lower: 35, upper: 35, gender: "MALE", outcome: "other", drugs: []entities.Drug{ibuprofen}},
		{cureID: 4, lower: 30, upper: 39, gender: "female", outcome: "improved", drugs: []entities.Drug{ibuprofen}},
		{cureID: 5, lower: 40, upper: 49, gender: "male", outcome: "improved", drugs: []entities.Drug{ibuprofen}},
	})

	results, err := drugs.AggregateByAgeAndGender(context.Background(), 35, "male")
	require.NoError(t, err)
	sort.Slice(results, func(i, j int) bool { return results[i].DrugName < results[j].DrugName })

	assert.Equal(t, []entities.AggregateResult{
		{DrugName: "heparin", DrugID: 3, Improved: 0, Deteriorated: 1, Undetermined: 0},
		{DrugName: "ibuprofen", DrugID: 42, Improved: 1, Deteriorated: 1, Undetermined: 0},
	}, results)
}

func TestAggregateBoundsAreInclusive(t *testing.T) {
	drugs, regimens := newRepos(t)
	seedCases(t, drugs, regimens, []caseSpec{
		{cureID: 1, lower: 30, upper: 39, gender: "male", outcome: "undetermined", drugs: []entities.Drug{ibuprofen}},
	})
	ctx := context.Background()

	for _, age := range []int{30, 39} {
		results, err := drugs.AggregateByAgeAndGender(ctx, age, "male")
		require.NoError(t, err)
		require.Len(t, results, 1, "age %d", age)
		assert.Equal(t, 1, results[0].Undetermined)
	}
	for _, age := range []int{29, 40} {
		results, err := drugs.AggregateByAgeAndGender(ctx, age, "male")
		require.NoError(t, err)
		assert.Empty(t, results, "age %d", age)
	}
}

func TestListByDrugAgeAndGender(t *testing.T) {
	drugs, regimens := newRepos(t)
	seedCases(t, drugs, regimens, []caseSpec{
		{cureID: 1, lower: 30, upper: 39, gender: "male", outcome: "improved", drugs: []entities.Drug{ibuprofen}},
		{cureID: 2, lower: 30, upper: 39, gender: "male", outcome: "deteriorated", drugs: []entities.Drug{heparin, ibuprofen}},
		{cureID: 3, lower: 30, upper: 39, gender: "male", outcome: "improved", drugs: []entities.Drug{heparin}},
		{cureID: 4, lower: 30, upper: 39, gender: "female", outcome: "improved", drugs: []entities.Drug{ibuprofen}},
	})

	results, err := regimens.ListByDrugAgeAndGender(context.Background(), 42, 35, "MALE")
	require.NoError(t, err)
	require.Len(t, results, 2)
	sort.Slice(results, func(i, j int) bool { return results[i].RegimenID < results[j].RegimenID })

	assert.Equal(t, 1, results[0].RegimenID)
	assert.Equal(t, "ibuprofen", results[0].RegimenName)
	assert.Equal(t, "improved", results[0].OutcomeComputed)
	assert.NotEmpty(t, results[0].ID)
	assert.Equal(t, 2, results[1].RegimenID)
	assert.Equal(t, "heparin+ibuprofen", results[1].RegimenName)
	assert.Equal(t, "USA", results[1].CountryTreated)

	results, err = regimens.ListByDrugAgeAndGender(context.Background(), 99, 35, "male")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindByRegimenID(t *testing.T) {
	drugs, regimens := newRepos(t)
	seedCases(t, drugs, regimens, []caseSpec{
		{cureID: 7, lower: 0, upper: 1, gender: "female", outcome: "improved", drugs: []entities.Drug{heparin}},
	})
	ctx := context.Background()

	got, found, err := regimens.FindByRegimenID(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "heparin", got.RegimenName)
	assert.NotEmpty(t, got.PartitionKey)

	_, found, err = regimens.FindByRegimenID(ctx, 8)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRegimenPartitionsAreRandom(t *testing.T) {
	_, regimens := newRepos(t)
	ctx := context.Background()

	a, err := regimens.AddOrUpdate(ctx, &entities.RegimenEntry{RegimenID: 1})
	require.NoError(t, err)
	b, err := regimens.AddOrUpdate(ctx, &entities.RegimenEntry{RegimenID: 2})
	require.NoError(t, err)
	assert.NotEqual(t, a.PartitionKey, b.PartitionKey)
}
