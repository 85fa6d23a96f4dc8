package caseparser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/giygas/cureid-api/caseparser/entities"
)

var (
	errMissing = errors.New("missing")
	errType    = errors.New("unexpected type")
)

// RawCase is one case object from a raw file, decoded lazily field by field.
type RawCase map[string]json.RawMessage

// CaseID returns the case id as text for diagnostics. It never fails.
func (c RawCase) CaseID() string {
	raw, ok := c["id"]
	if !ok {
		return "unknown"
	}
	id := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if id == "" || id == "null" {
		return "unknown"
	}
	return id
}

func (c RawCase) malformed(field string, err error) error {
	return &MalformedCaseError{CaseID: c.CaseID(), Field: field, Err: err}
}

// str reads a required string. JSON null reads as "".
func (c RawCase) str(field string) (string, error) {
	raw, ok := c[field]
	if !ok {
		return "", c.malformed(field, errMissing)
	}
	return c.decodeString(field, raw)
}

func (c RawCase) decodeString(field string, raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", c.malformed(field, fmt.Errorf("%w: want string, got %s", errType, raw))
	}
	return s, nil
}

// optionalStr reads a string that may be absent, null or of another type.
func (c RawCase) optionalStr(field string) string {
	raw, ok := c[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// integer reads a required integer given as a JSON number or a numeric string.
func (c RawCase) integer(field string) (int, error) {
	raw, ok := c[field]
	if !ok {
		return 0, c.malformed(field, errMissing)
	}
	n, err := parseInt(raw)
	if err != nil {
		return 0, c.malformed(field, err)
	}
	return n, nil
}

func parseInt(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("%w: %s is not an integer", errType, raw)
		}
		return int(f), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, convErr := strconv.Atoi(strings.TrimSpace(s))
		if convErr != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", errType, s)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: want integer, got %s", errType, raw)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// treatmentYear reads began_treatment_year, falling back to pub_year when the
// former is an empty string or null.
func (c RawCase) treatmentYear() (int, error) {
	raw, ok := c["began_treatment_year"]
	if !ok {
		return 0, c.malformed("began_treatment_year", errMissing)
	}
	if !isNull(raw) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) != "" {
			return c.integer("began_treatment_year")
		}
	}
	return c.integer("pub_year")
}

// races reads the optional race list. Absent or empty yields the [""] placeholder.
func (c RawCase) races() []string {
	raw, ok := c["race"]
	if !ok || isNull(raw) {
		return []string{""}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return []string{""}
		}
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}
	return []string{""}
}

// Normalizer builds entries from raw cases. It is pure apart from id generation.
type Normalizer struct {
	newID func() string
}

// NewNormalizer creates a normalizer. A nil newID uses random UUIDs.
func NewNormalizer(newID func() string) *Normalizer {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Normalizer{newID: newID}
}

var defaultNormalizer = NewNormalizer(nil)

// BuildDrugEntry builds the drug-scoped entry of a case.
func BuildDrugEntry(drugID int, drugName string, c RawCase) (*entities.DrugEntry, error) {
	return defaultNormalizer.BuildDrugEntry(drugID, drugName, c)
}

// BuildRegimenEntry builds the regimen-scoped entry of a case.
func BuildRegimenEntry(c RawCase) (*entities.RegimenEntry, error) {
	return defaultNormalizer.BuildRegimenEntry(c)
}

func (n *Normalizer) BuildDrugEntry(drugID int, drugName string, c RawCase) (*entities.DrugEntry, error) {
	base, err := n.buildBase(c, entities.EntryTypeDrug, entities.DrugEntryTypeName)
	if err != nil {
		return nil, err
	}
	base.Name = drugName
	base.PartitionKey = strconv.Itoa(drugID)

	return &entities.DrugEntry{
		EntryBase: base,
		DrugID:    drugID,
		DrugName:  drugName,
	}, nil
}

type rawRegimen struct {
	Drug *struct {
		ID   json.RawMessage `json:"id"`
		Name *string         `json:"name"`
	} `json:"drug"`
}

// BuildRegimenEntry leaves PartitionKey empty: regimen entries get a fresh one on write.
func (n *Normalizer) BuildRegimenEntry(c RawCase) (*entities.RegimenEntry, error) {
	base, err := n.buildBase(c, entities.EntryTypeRegimen, entities.RegimenEntryTypeName)
	if err != nil {
		return nil, err
	}

	raw, ok := c["regimens"]
	if !ok {
		return nil, c.malformed("regimens", errMissing)
	}
	var regimens []rawRegimen
	if err := json.Unmarshal(raw, &regimens); err != nil {
		return nil, c.malformed("regimens", fmt.Errorf("%w: %v", errType, err))
	}

	drugs := make([]entities.Drug, 0, len(regimens))
	for i, r := range regimens {
		field := fmt.Sprintf("regimens[%d].drug", i)
		if r.Drug == nil {
			return nil, c.malformed(field, errMissing)
		}
		if r.Drug.ID == nil {
			return nil, c.malformed(field+".id", errMissing)
		}
		id, err := parseInt(r.Drug.ID)
		if err != nil {
			return nil, c.malformed(field+".id", err)
		}
		if r.Drug.Name == nil {
			return nil, c.malformed(field+".name", errMissing)
		}
		drugs = append(drugs, entities.Drug{DrugID: id, DrugName: *r.Drug.Name})
	}

	name := RegimenName(drugs)
	base.Name = name

	return &entities.RegimenEntry{
		EntryBase:      base,
		RegimenID:      base.CureID,
		RegimenName:    name,
		RegimenDrugs:   drugs,
		Unusual:        c.optionalStr("unusual"),
		AdverseEvents:  c.optionalStr("adverse_events"),
		AdditionalInfo: c.optionalStr("additional_info"),
	}, nil
}

// RegimenName sorts drugs by ascending id, keeping the input order of equal ids,
// and joins their names with "+".
func RegimenName(drugs []entities.Drug) string {
	sort.SliceStable(drugs, func(i, j int) bool {
		return drugs[i].DrugID < drugs[j].DrugID
	})
	names := make([]string, len(drugs))
	for i, d := range drugs {
		names[i] = d.DrugName
	}
	return strings.Join(names, "+")
}

func (n *Normalizer) buildBase(c RawCase, entryType, typeName string) (entities.EntryBase, error) {
	var base entities.EntryBase
	var err error

	if base.CureID, err = c.integer("id"); err != nil {
		return base, err
	}
	ageText, err := c.str("age")
	if err != nil {
		return base, err
	}
	age := ParseAgeRange(ageText)
	base.AgeLowerBound, base.AgeUpperBound = age.Lower, age.Upper

	if base.Gender, err = c.str("sex"); err != nil {
		return base, err
	}
	if base.CountryTreated, err = c.str("country_treated"); err != nil {
		return base, err
	}
	if base.Outcome, err = c.str("outcome"); err != nil {
		return base, err
	}
	if base.OutcomeComputed, err = c.str("outcome_computed"); err != nil {
		return base, err
	}
	if base.TreatmentYear, err = c.treatmentYear(); err != nil {
		return base, err
	}
	base.Races = c.races()
	SetTallies(&base)

	base.ID = n.newID()
	base.TypeName = typeName
	base.EntryType = entryType
	return base, nil
}

// SetTallies sets exactly one tally from OutcomeComputed, compared case-insensitively.
// An unrecognized outcome leaves all three at zero and returns false.
func SetTallies(e *entities.EntryBase) bool {
	e.Improved, e.Deteriorated, e.Undetermined = 0, 0, 0
	switch cases.Fold().String(e.OutcomeComputed) {
	case entities.OutcomeImproved:
		e.Improved = 1
	case entities.OutcomeDeteriorated:
		e.Deteriorated = 1
	case entities.OutcomeUndetermined:
		e.Undetermined = 1
	default:
		return false
	}
	return true
}
