package services

import (
	"context"

	"github.com/google/uuid"
)

// CustomerIdentity is the authenticated storefront user of a request.
type CustomerIdentity struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// AdminIdentity is the record an admin session token resolves to.
type AdminIdentity struct {
	AdminID     uuid.UUID `json:"admin_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
}

type customerKey struct{}

type adminKey struct{}

// WithCustomer returns a context carrying the customer identity.
func WithCustomer(ctx context.Context, identity *CustomerIdentity) context.Context {
	return context.WithValue(ctx, customerKey{}, identity)
}

// CustomerFrom extracts the customer identity, or nil.
func CustomerFrom(ctx context.Context) *CustomerIdentity {
	identity, _ := ctx.Value(customerKey{}).(*CustomerIdentity)
	return identity
}

// WithAdmin returns a context carrying the admin identity.
func WithAdmin(ctx context.Context, identity *AdminIdentity) context.Context {
	return context.WithValue(ctx, adminKey{}, identity)
}

// AdminFrom extracts the admin identity, or nil.
func AdminFrom(ctx context.Context) *AdminIdentity {
	identity, _ := ctx.Value(adminKey{}).(*AdminIdentity)
	return identity
}
