// Package entities holds the documents persisted by the ingestion pipeline and the
// projections returned by the read models.
package entities

// Entity is implemented by every document type the repositories persist.
// Base exposes the shared identity fields so they can be assigned before a write.
type Entity interface {
	Base() *DomainEntity
}

// DomainEntity carries the fields every persisted document has. The container a
// document lives in is not stored: it comes from the repository mapping.
type DomainEntity struct {
	ID           string `json:"id"`
	Name         string `json:"Name"`
	TypeName     string `json:"TypeName"`
	PartitionKey string `json:"PartitionKey"`
}

// Base returns the entity's shared fields.
func (d *DomainEntity) Base() *DomainEntity {
	return d
}
