package entities

// Discriminator values stored in EntryType.
const (
	EntryTypeDrug    = "Drug"
	EntryTypeRegimen = "Regimen"
)

// Computed outcome values. Comparison against OutcomeComputed is case-insensitive.
const (
	OutcomeImproved     = "improved"
	OutcomeDeteriorated = "deteriorated"
	OutcomeUndetermined = "undetermined"
)

// CaseFilesContainer is the collection shared by drug and regimen entries.
const CaseFilesContainer = "CaseFiles"

// EntryBase is the part of a case shared by drug and regimen entries.
type EntryBase struct {
	DomainEntity

	CureID          int      `json:"CureId"`
	AgeLowerBound   int      `json:"AgeLowerBound"`
	AgeUpperBound   int      `json:"AgeUpperBound"`
	Gender          string   `json:"Gender"`
	CountryTreated  string   `json:"CountryTreated"`
	Races           []string `json:"Races"`
	Outcome         string   `json:"Outcome"`
	OutcomeComputed string   `json:"OutcomeComputed"`
	TreatmentYear   int      `json:"TreatmentYear"`

	// Tallies, at most one of them is 1
	Improved     int `json:"Improved"`
	Deteriorated int `json:"Deteriorated"`
	Undetermined int `json:"Undetermined"`

	EntryType string `json:"EntryType"`
}
