package caseparser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/cureid-api/caseparser/entities"
)

type recordingSink struct {
	drugs      []*entities.DrugEntry
	regimens   []*entities.RegimenEntry
	failDrugAt int // 1-based, 0 disables
}

func (s *recordingSink) EmitDrug(_ context.Context, e *entities.DrugEntry) error {
	if s.failDrugAt > 0 && len(s.drugs)+1 == s.failDrugAt {
		return errors.New("queue full")
	}
	s.drugs = append(s.drugs, e)
	return nil
}

func (s *recordingSink) EmitRegimen(_ context.Context, e *entities.RegimenEntry) error {
	s.regimens = append(s.regimens, e)
	return nil
}

const ibuprofenFile = `[
	{"id": 1, "age": "30 - 39 years", "sex": "male", "country_treated": "USA", "outcome": "better",
	 "outcome_computed": "improved", "began_treatment_year": "2020", "pub_year": 2020,
	 "regimens": [{"drug": {"id": 42, "name": "ibuprofen"}}]},
	{"id": 2, "age": "<1 year", "sex": "female", "country_treated": "USA", "outcome": "worse",
	 "outcome_computed": "deteriorated", "began_treatment_year": "", "pub_year": 2021,
	 "regimens": [{"drug": {"id": 42, "name": "ibuprofen"}}, {"drug": {"id": 3, "name": "heparin"}}]}
]`

func TestPipelineProcess(t *testing.T) {
	sink := &recordingSink{}
	p := NewPipeline(sink, sink, NewNormalizer(sequentialIDs()))

	result, err := p.Process(context.Background(), "02-42-ibuprofen.json", []byte(ibuprofenFile))
	require.NoError(t, err)
	assert.Equal(t, 42, result.DrugID)
	assert.Equal(t, "ibuprofen", result.DrugName)
	assert.Equal(t, 2, result.Cases)

	require.Len(t, sink.drugs, 2)
	require.Len(t, sink.regimens, 2)
	assert.Equal(t, "42", sink.drugs[0].PartitionKey)
	assert.Equal(t, 0, sink.drugs[1].AgeLowerBound)
	assert.Equal(t, 1, sink.drugs[1].AgeUpperBound)
	assert.Equal(t, 2021, sink.drugs[1].TreatmentYear)
	assert.Equal(t, "heparin+ibuprofen", sink.regimens[1].RegimenName)
	assert.Equal(t, 2, sink.regimens[1].RegimenID)
}

func TestPipelineAbortsOnMalformedCase(t *testing.T) {
	body := `[
		{"id": 1, "age": "", "sex": "male", "country_treated": "USA", "outcome": "",
		 "outcome_computed": "improved", "began_treatment_year": "2020", "pub_year": 2020, "regimens": []},
		{"id": 2, "sex": "male"},
		{"id": 3, "age": "", "sex": "male", "country_treated": "USA", "outcome": "",
		 "outcome_computed": "improved", "began_treatment_year": "2020", "pub_year": 2020, "regimens": []}
	]`
	sink := &recordingSink{}
	p := NewPipeline(sink, sink, nil)

	_, err := p.Process(context.Background(), "02-42-ibuprofen.json", []byte(body))
	var malformed *MalformedCaseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "2", malformed.CaseID)
	assert.Len(t, sink.drugs, 1, "cases before the failure are emitted, later ones are not")
}

func TestPipelineFatalErrors(t *testing.T) {
	sink := &recordingSink{}
	p := NewPipeline(sink, sink, nil)

	_, err := p.Process(context.Background(), "ibuprofen.json", []byte(ibuprofenFile))
	var namingErr *FileNamingError
	assert.ErrorAs(t, err, &namingErr)

	_, err = p.Process(context.Background(), "02-42-ibuprofen.json", []byte(`{"id": 1}`))
	assert.Error(t, err)

	_, err = p.Process(context.Background(), "02-42-ibuprofen.json", []byte(`[1, 2]`))
	assert.Error(t, err)
	assert.Empty(t, sink.drugs)
}

func TestPipelineSinkFailure(t *testing.T) {
	sink := &recordingSink{failDrugAt: 2}
	p := NewPipeline(sink, sink, nil)

	_, err := p.Process(context.Background(), "02-42-ibuprofen.json", []byte(ibuprofenFile))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
	assert.Len(t, sink.drugs, 1)
	assert.Len(t, sink.regimens, 1)
}

func TestPipelineCancelled(t *testing.T) {
	sink := &recordingSink{}
	p := NewPipeline(sink, sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, "02-42-ibuprofen.json", []byte(ibuprofenFile))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.drugs)
}

func TestDecodeCasesLatin1(t *testing.T) {
	body := []byte("[{\"id\": 1, \"country_treated\": \"C\xf4te d'Ivoire\"}]")
	cases, err := DecodeCases(body)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	country, err := cases[0].str("country_treated")
	require.NoError(t, err)
	assert.Equal(t, "Côte d'Ivoire", country)
}

func TestDecodeCasesEmptyArray(t *testing.T) {
	cases, err := DecodeCases([]byte("\xef\xbb\xbf[]"))
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestOutcomeLabelIsBounded(t *testing.T) {
	assert.Equal(t, "empty", outcomeLabel(""))
	assert.Equal(t, "empty", outcomeLabel("  "))
	assert.Equal(t, "other", outcomeLabel("recovered"))
	assert.Equal(t, "other", outcomeLabel("patient-specific free text 12345"))
}
