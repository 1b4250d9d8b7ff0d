package auth

import (
	"testing"

	"pos-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	admin := Actor{ID: 1, Role: RoleAdmin}
	staff := Actor{ID: 2, Role: RoleStaff}
	superuser := Actor{ID: 3, Role: "", Superuser: true}
	outsider := Actor{ID: 4, Role: "viewer"}

	assert.True(t, Can(staff, ActionSaleCreate))
	assert.True(t, Can(staff, ActionPaymentRecord))
	assert.True(t, Can(staff, ActionRefundCreate))
	assert.False(t, Can(staff, ActionRefundApprove))
	assert.False(t, Can(staff, ActionSaleDelete))
	assert.False(t, Can(staff, ActionInventoryAdjust))

	assert.True(t, Can(admin, ActionRefundApprove))
	assert.True(t, Can(admin, ActionRefundDecline))
	assert.True(t, Can(admin, ActionCatalogWrite))
	assert.True(t, Can(admin, ActionSaleDelete))

	// A superuser without a role still carries admin authority.
	assert.True(t, Can(superuser, ActionRefundApprove))
	assert.True(t, Can(superuser, ActionSaleCreate))

	assert.False(t, Can(outsider, ActionSaleCreate))
	assert.False(t, Can(outsider, Action("unknown.action")))
}

func TestCanEditRefund(t *testing.T) {
	creator := Actor{ID: 10, Role: RoleStaff}
	other := Actor{ID: 11, Role: RoleStaff}
	admin := Actor{ID: 12, Role: RoleAdmin}

	pending := &models.RefundRequest{Status: models.RefundStatusPending, CreatedBy: 10}
	assert.True(t, CanEditRefund(creator, pending))
	assert.False(t, CanEditRefund(other, pending))
	assert.True(t, CanEditRefund(admin, pending))

	// Terminal requests are frozen for everyone, admins included.
	approved := &models.RefundRequest{Status: models.RefundStatusApproved, CreatedBy: 10}
	assert.False(t, CanEditRefund(creator, approved))
	assert.False(t, CanEditRefund(admin, approved))
}
