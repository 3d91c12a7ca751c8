// Package authz holds the declarative role capability table. Every protected
// route names a resource and an action; the middleware checks the acting
// staff member's role against this table in one place.
package authz

import "github.com/lavandera/api/internal/enum"

// Resources.
const (
	ResourceOrders    = "orders"
	ResourceInventory = "inventory"
	ResourceProducts  = "products"
	ResourceCustomers = "customers"
	ResourceStaff     = "staff"
	ResourceAnalytics = "analytics"
)

// Actions.
const (
	ActionRead    = "read"
	ActionWrite   = "write"
	ActionAdvance = "advance" // fulfillment transitions (services, handling)
	ActionManage  = "manage"  // destructive order ops: reject, cancel, modify
)

type pair struct {
	resource string
	action   string
}

// capabilities maps role -> allowed resource-action pairs. Admin is handled
// separately in Allowed: it can do everything.
var capabilities = map[string][]pair{
	enum.StaffRoleManager: {
		{ResourceOrders, ActionRead},
		{ResourceOrders, ActionWrite},
		{ResourceOrders, ActionAdvance},
		{ResourceOrders, ActionManage},
		{ResourceInventory, ActionRead},
		{ResourceInventory, ActionWrite},
		{ResourceProducts, ActionRead},
		{ResourceProducts, ActionWrite},
		{ResourceCustomers, ActionRead},
		{ResourceCustomers, ActionWrite},
		{ResourceStaff, ActionRead},
		{ResourceStaff, ActionWrite},
		{ResourceAnalytics, ActionRead},
	},
	enum.StaffRoleCashier: {
		{ResourceOrders, ActionRead},
		{ResourceOrders, ActionWrite},
		{ResourceOrders, ActionAdvance},
		{ResourceOrders, ActionManage},
		{ResourceInventory, ActionRead},
		{ResourceProducts, ActionRead},
		{ResourceCustomers, ActionRead},
		{ResourceCustomers, ActionWrite},
	},
	enum.StaffRoleRider: {
		{ResourceOrders, ActionRead},
		{ResourceOrders, ActionAdvance},
	},
}

// Allowed reports whether the given role may perform action on resource.
func Allowed(role, resource, action string) bool {
	if role == enum.StaffRoleAdmin {
		return true
	}
	for _, p := range capabilities[role] {
		if p.resource == resource && p.action == action {
			return true
		}
	}
	return false
}
