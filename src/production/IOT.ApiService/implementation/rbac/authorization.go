package rbac

import (
	"errors"
)

// ErrForbidden is returned when the caller may not touch a resource.
var ErrForbidden = errors.New("insufficient permissions")

// Authorizer decides resource access from the caller identity that the
// auth middleware put on the request.
type Authorizer struct {
	rbacService *Service
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(rbacService *Service) *Authorizer {
	return &Authorizer{rbacService: rbacService}
}

// IsOwner checks if user owns the resource
func (a *Authorizer) IsOwner(userID, resourceUserID string) bool {
	return userID != "" && userID == resourceUserID
}

// RequireOwnerOrAdmin lets admins through and everyone else only to their
// own resources.
func (a *Authorizer) RequireOwnerOrAdmin(userID, role, resourceUserID string) error {
	if a.rbacService.IsAdmin(role) || a.IsOwner(userID, resourceUserID) {
		return nil
	}
	return ErrForbidden
}

// OwnerFilter returns the owner id a listing should be restricted to; empty
// for admins, who see everything.
func (a *Authorizer) OwnerFilter(userID, role string) string {
	if a.rbacService.IsAdmin(role) {
		return ""
	}
	return userID
}
