package entities

// RegimenEntryTypeName is the TypeName stored on regimen entries.
const RegimenEntryTypeName = "RegimenEntry"

// Drug is one member of a regimen.
type Drug struct {
	DrugID   int    `json:"DrugId"`
	DrugName string `json:"DrugName"`
}

// RegimenEntry is the full set of drugs administered together in one case.
// RegimenDrugs is sorted by ascending drug id and RegimenName follows that order.
type RegimenEntry struct {
	EntryBase

	RegimenID    int    `json:"RegimenId"`
	RegimenName  string `json:"RegimenName"`
	RegimenDrugs []Drug `json:"RegimenDrugs"`

	Unusual        string `json:"Unusual"`
	AdverseEvents  string `json:"AdverseEvents"`
	AdditionalInfo string `json:"AdditionalInfo"`
}
