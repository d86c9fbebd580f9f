package domain

import "slices"

// Identity is a chat-platform user as seen by the ticket system.
type Identity struct {
	ID          string
	DisplayName string
}

// Mention renders the platform mention syntax for the identity.
func (i Identity) Mention() string {
	if i.ID == "" {
		return i.DisplayName
	}
	return "<@" + i.ID + ">"
}

// Label is used in summaries and audit entries.
func (i Identity) Label() string {
	switch {
	case i.DisplayName != "" && i.ID != "":
		return i.DisplayName + " (" + i.ID + ")"
	case i.DisplayName != "":
		return i.DisplayName
	default:
		return i.ID
	}
}

// Actor is the authenticated caller of a ticket or moderation operation.
type Actor struct {
	Identity
	RoleIDs []string
	CanBan  bool
}

// HasAnyRole reports whether the actor holds one of the given roles.
func (a Actor) HasAnyRole(roleIDs []string) bool {
	for _, id := range roleIDs {
		if slices.Contains(a.RoleIDs, id) {
			return true
		}
	}
	return false
}
