package entities

// DrugEntryTypeName is the TypeName stored on drug entries.
const DrugEntryTypeName = "DrugEntry"

// DrugEntry is one case seen from the point of view of a single drug.
// Entries partition by drug id.
type DrugEntry struct {
	EntryBase

	DrugID   int    `json:"DrugId"`
	DrugName string `json:"DrugName"`
}
