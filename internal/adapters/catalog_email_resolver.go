package adapters

import (
	"context"

	"marketplace_backend/internal/catalog/repository"
	"marketplace_backend/internal/notification"

	"github.com/google/uuid"
)

// ContactReader resolves user contact details.
type ContactReader interface {
	UserContact(ctx context.Context, userID uuid.UUID) (repository.Contact, bool)
}

// CatalogEmailResolver resolves notification recipients' email addresses
// from the catalog.
type CatalogEmailResolver struct {
	contacts ContactReader
}

func NewCatalogEmailResolver(contacts ContactReader) *CatalogEmailResolver {
	return &CatalogEmailResolver{contacts: contacts}
}

func (r *CatalogEmailResolver) EmailAddress(ctx context.Context, userID uuid.UUID) (string, bool) {
	contact, ok := r.contacts.UserContact(ctx, userID)
	if !ok || contact.Email == "" {
		return "", false
	}
	return contact.Email, true
}

var _ notification.EmailResolver = (*CatalogEmailResolver)(nil)
