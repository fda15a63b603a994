package models

// Group represents a set of people sharing expenses.
// A group owns its expenses; all of them must be in the group's currency.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Currency is the three-letter code every expense of the group uses.
	Currency string

	// Members is the list of participants in this group.
	Members []Participant

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// MemberIDs returns the IDs of all members in group order.
func (g *Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}
