package models

// Participant represents a group member.
//
// Only ID is used for identity; two participants with the same name but
// different IDs are different people.
type Participant struct {
	// ID is the opaque member identifier.
	ID string

	// Name is the optional display name.
	Name string

	// Email is the optional contact address, used for attribution only.
	Email string
}

// DisplayName returns Name, falling back to ID.
func (p Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
