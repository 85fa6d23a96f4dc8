package entities

// AggregateResult is the outcome tally of one drug for an age and gender.
type AggregateResult struct {
	DrugName     string `json:"drugName"`
	DrugID       int    `json:"drugId"`
	Improved     int    `json:"improved"`
	Deteriorated int    `json:"deteriorated"`
	Undetermined int    `json:"undetermined"`
}
