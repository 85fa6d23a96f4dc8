package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/data"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/query"
)

var (
	_ interfaces.RegimenReader = (*RegimenRepository)(nil)
	_ interfaces.RegimenLookup = (*RegimenRepository)(nil)
)

// RegimenMapping stores regimen entries next to drug entries. Each regimen
// document gets its own random partition.
var RegimenMapping = Mapping[*entities.RegimenEntry]{
	TypeName:  entities.RegimenEntryTypeName,
	Container: entities.CaseFilesContainer,
	PartitionKey: func(*entities.RegimenEntry) string {
		return uuid.NewString()
	},
	New: func() *entities.RegimenEntry { return &entities.RegimenEntry{} },
}

// RegimenRepository persists regimen entries and serves the regimen read model.
type RegimenRepository struct {
	*Repository[*entities.RegimenEntry]
}

// NewRegimenRepository creates a regimen repository.
func NewRegimenRepository(store interfaces.DocumentStore, cache *data.ContainerCache) (*RegimenRepository, error) {
	repo, err := New(store, cache, RegimenMapping)
	if err != nil {
		return nil, err
	}
	return &RegimenRepository{Repository: repo}, nil
}

// FindByRegimenID returns the regimen entry recorded for a case, if any.
func (r *RegimenRepository) FindByRegimenID(ctx context.Context, regimenID int) (*entities.RegimenEntry, bool, error) {
	return r.Find(ctx, query.Where("RegimenId", query.Eq, regimenID))
}

// ListByDrugAgeAndGenderStatement selects the regimens containing drugID for
// an age and gender.
func ListByDrugAgeAndGenderStatement(drugID, age int, gender string) query.Statement {
	return query.Statement{
		Where: []query.Clause{
			query.Where("EntryType", query.Eq, entities.EntryTypeRegimen),
			query.Where("RegimenDrugs.DrugId", query.Eq, query.Param("drugId")),
			query.Where("AgeLowerBound", query.Le, query.Param("age")),
			query.Where("AgeUpperBound", query.Ge, query.Param("age")),
			query.Where("Gender", query.EqFold, query.Param("gender")),
		},
		Select: []string{
			"id", "RegimenId", "RegimenName", "CountryTreated", "OutcomeComputed",
			"Unusual", "AdverseEvents", "AdditionalInfo",
		},
		Params: map[string]any{
			"drugId": drugID,
			"age":    age,
			"gender": gender,
		},
	}
}

// ListByDrugAgeAndGender returns one result per matching case.
func (r *RegimenRepository) ListByDrugAgeAndGender(ctx context.Context, drugID, age int, gender string) ([]entities.RegimenResult, error) {
	return QueryProjection[entities.RegimenResult](ctx, r.Repository, ListByDrugAgeAndGenderStatement(drugID, age, gender))
}
