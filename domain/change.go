package domain

// EntityType tags a change event with the kind of entity it concerns
type EntityType string

// Operation is the kind of mutation or sync transition that happened
type Operation string

const (
	EntityLocation = EntityType("location")
	EntityPhoto    = EntityType("photo")
	EntitySync     = EntityType("sync")

	OpCreated = Operation("created")
	OpUpdated = Operation("updated")
	OpDeleted = Operation("deleted")

	// sync cycle terminal transitions, published by the sync engine
	OpCompleted = Operation("completed")
	OpEmpty     = Operation("empty")
	OpFailed    = Operation("failed")
)

// Change describes one committed store mutation or one sync cycle
// transition. Location carries the owning location for photo and sync
// events. Error is only set on OpFailed.
type Change struct {
	Entity   EntityType `json:"entity"`
	Op       Operation  `json:"op"`
	ID       string     `json:"id"`
	Location LocationID `json:"location,omitempty"`
	Error    string     `json:"error,omitempty"`
}
