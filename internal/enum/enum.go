package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusForPickup  = "for_pickup"
	OrderStatusDelivering = "delivering"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// NormalizeOrderStatus maps legacy status spellings onto the canonical set.
// Returns "" for anything unrecognized; callers must reject that.
func NormalizeOrderStatus(s string) string {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusForPickup,
		OrderStatusDelivering, OrderStatusCompleted, OrderStatusCancelled:
		return s
	case "pick-up", "for_pick-up", "for_delivery":
		return OrderStatusForPickup
	}
	return ""
}

const (
	BasketStatusProcessing = "processing"
	BasketStatusCompleted  = "completed"
)

const (
	ServiceStatusPending    = "pending"
	ServiceStatusInProgress = "in_progress"
	ServiceStatusCompleted  = "completed"
	ServiceStatusSkipped    = "skipped"
)

const (
	ServiceTypeWash = "wash"
	ServiceTypeDry  = "dry"
	ServiceTypeSpin = "spin"
	ServiceTypeIron = "iron"
	ServiceTypeFold = "fold"
)

// ServiceTypes lists the trackable basket services. Pickup and delivery are
// virtual phases carried on the order's handling columns, not rows here.
var ServiceTypes = []string{ServiceTypeWash, ServiceTypeDry, ServiceTypeSpin, ServiceTypeIron, ServiceTypeFold}

func IsServiceType(s string) bool {
	for _, t := range ServiceTypes {
		if s == t {
			return true
		}
	}
	return false
}

const (
	HandlingPickup   = "pickup"
	HandlingDelivery = "delivery"
)

const (
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionSkip     = "skip"
)

// ── Order source ──

const (
	OrderSourcePOS    = "pos"
	OrderSourceMobile = "mobile"
	OrderSourceApp    = "app"
)

func IsOrderSource(s string) bool {
	switch s {
	case OrderSourcePOS, OrderSourceMobile, OrderSourceApp:
		return true
	}
	return false
}

// ── Staff roles ──

const (
	StaffRoleAdmin   = "admin"
	StaffRoleManager = "manager"
	StaffRoleCashier = "cashier"
	StaffRoleRider   = "rider"
)

func IsStaffRole(s string) bool {
	switch s {
	case StaffRoleAdmin, StaffRoleManager, StaffRoleCashier, StaffRoleRider:
		return true
	}
	return false
}

// ── Inventory transaction types ──

const (
	TxnTypeOrder      = "order"
	TxnTypeAdjustment = "adjustment"
	TxnTypeReturn     = "return"
	TxnTypeRestock    = "restock"
)

func IsTxnType(s string) bool {
	switch s {
	case TxnTypeOrder, TxnTypeAdjustment, TxnTypeReturn, TxnTypeRestock:
		return true
	}
	return false
}
