package entities

// RegimenResult is a single case listed under a drug in the regimen view.
type RegimenResult struct {
	ID              string `json:"id"`
	RegimenID       int    `json:"regimenId"`
	RegimenName     string `json:"regimenName"`
	CountryTreated  string `json:"countryTreated"`
	OutcomeComputed string `json:"outcomeComputed"`
	Unusual         string `json:"unusual"`
	AdverseEvents   string `json:"adverseEvents"`
	AdditionalInfo  string `json:"additionalInfo"`
}
