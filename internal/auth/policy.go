// Package auth holds the acting principal and the authorization policy.
// The session layer that authenticates users is an external collaborator;
// the core receives an opaque Actor and gates every operation through Can.
package auth

import "pos-service/internal/models"

// Roles supplied by the session collaborator
const (
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RoleManager = "manager"
)

// Actor is the principal performing a core operation.
type Actor struct {
	ID        int64
	Username  string
	Role      string
	Superuser bool
}

// Actions checked by core operation entry points
type Action string

const (
	ActionSaleCreate      Action = "sale.create"
	ActionSaleDelete      Action = "sale.delete"
	ActionPaymentRecord   Action = "payment.record"
	ActionRefundCreate    Action = "refund.create"
	ActionRefundApprove   Action = "refund.approve"
	ActionRefundDecline   Action = "refund.decline"
	ActionCatalogWrite    Action = "catalog.write"
	ActionInventoryAdjust Action = "inventory.adjust"
)

// IsAdmin reports whether the actor has admin-level authority.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Superuser
}

// IsStaffOrAdmin reports whether the actor belongs to the operating staff.
func (a Actor) IsStaffOrAdmin() bool {
	switch a.Role {
	case RoleAdmin, RoleStaff, RoleManager:
		return true
	}
	return a.Superuser
}

// Can is the single authorization policy. Every core operation calls it at
// its entry point instead of re-deriving role checks inline.
func Can(actor Actor, action Action) bool {
	switch action {
	case ActionSaleCreate, ActionPaymentRecord, ActionRefundCreate:
		return actor.IsStaffOrAdmin()
	case ActionRefundApprove, ActionRefundDecline, ActionCatalogWrite,
		ActionInventoryAdjust, ActionSaleDelete:
		return actor.IsAdmin()
	}
	return false
}

// CanEditRefund combines the pending-only rule with ownership: the creator
// may edit their own pending request, admins may edit any pending request.
func CanEditRefund(actor Actor, request *models.RefundRequest) bool {
	if !request.CanEdit() {
		return false
	}
	return request.CreatedBy == actor.ID || actor.IsAdmin()
}
