package repository

import (
	"context"
	"strconv"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/data"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/query"
)

var _ interfaces.DrugReader = (*DrugRepository)(nil)

// DrugMapping stores drug entries in the case files container, partitioned by drug id.
var DrugMapping = Mapping[*entities.DrugEntry]{
	TypeName:  entities.DrugEntryTypeName,
	Container: entities.CaseFilesContainer,
	PartitionKey: func(e *entities.DrugEntry) string {
		return strconv.Itoa(e.DrugID)
	},
	New: func() *entities.DrugEntry { return &entities.DrugEntry{} },
}

// DrugRepository persists drug entries and serves the drug aggregate read model.
type DrugRepository struct {
	*Repository[*entities.DrugEntry]
}

// NewDrugRepository creates a drug repository.
func NewDrugRepository(store interfaces.DocumentStore, cache *data.ContainerCache) (*DrugRepository, error) {
	repo, err := New(store, cache, DrugMapping)
	if err != nil {
		return nil, err
	}
	return &DrugRepository{Repository: repo}, nil
}

// AggregateByAgeAndGenderStatement selects drug entries whose age bracket
// contains age and whose gender matches case-insensitively, and sums the
// outcome tallies per drug.
func AggregateByAgeAndGenderStatement(age int, gender string) query.Statement {
	return query.Statement{
		Where: []query.Clause{
			query.Where("EntryType", query.Eq, entities.EntryTypeDrug),
			query.Where("AgeLowerBound", query.Le, query.Param("age")),
			query.Where("AgeUpperBound", query.Ge, query.Param("age")),
			query.Where("Gender", query.EqFold, query.Param("gender")),
		},
		GroupBy: []string{"DrugName", "DrugId"},
		Sums:    []string{"Improved", "Deteriorated", "Undetermined"},
		Params: map[string]any{
			"age":    age,
			"gender": gender,
		},
	}
}

// AggregateByAgeAndGender returns one tally per drug. Order is unspecified.
func (r *DrugRepository) AggregateByAgeAndGender(ctx context.Context, age int, gender string) ([]entities.AggregateResult, error) {
	return QueryProjection[entities.AggregateResult](ctx, r.Repository, AggregateByAgeAndGenderStatement(age, gender))
}
