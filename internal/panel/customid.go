package panel

import "strings"

const (
	categoryButtonPrefix = "ticket_"
	ticketModalPrefix    = "create_ticket_modal_"
	closeButtonPrefix    = "close_ticket_"

	FieldSubject     = "ticket_subject"
	FieldDescription = "ticket_description"
)

// CategoryButtonID is the custom id of a panel button.
func CategoryButtonID(category string) string {
	return categoryButtonPrefix + category
}

// TicketModalID is the custom id of the ticket form for a category.
func TicketModalID(category string) string {
	return ticketModalPrefix + category
}

// ParseCategoryButton extracts the category from a panel button id.
func ParseCategoryButton(customID string) (string, bool) {
	return cutNonEmpty(customID, categoryButtonPrefix)
}

// ParseTicketModal extracts the category from a ticket form id.
func ParseTicketModal(customID string) (string, bool) {
	return cutNonEmpty(customID, ticketModalPrefix)
}

// ParseCloseButton extracts the ticket id from a close button id.
func ParseCloseButton(customID string) (string, bool) {
	return cutNonEmpty(customID, closeButtonPrefix)
}

func cutNonEmpty(s, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
